package elf

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// NoteHeader precedes every note of a note segment.
type NoteHeader struct {
	NameSize uint32 `json:"namesz" yaml:"namesz"`
	DescSize uint32 `json:"descsz" yaml:"descsz"`
	Type     uint32 `json:"type" yaml:"type"`
}

// Note is a single decoded note. Name has its terminating NUL bytes removed,
// NameSize still reports the size declared in the file.
type Note struct {
	NoteHeader `yaml:",inline"`
	Offset     int64  `json:"offset" yaml:"offset"`
	Name       string `json:"name" yaml:"name"`
	Desc       []byte `json:"desc" yaml:"desc"`
}

func align4(n uint64) uint64 {
	return (n + noteAlign - 1) &^ (noteAlign - 1)
}

// noteLayout picks the note header layout for a byte order. Note headers are
// three 4-byte words in both classes.
func noteLayout(order binary.ByteOrder) (*Layout, error) {
	switch order {
	case binary.LittleEndian:
		return layoutFor(StructNoteHeader, Class64, DataLSB)
	case binary.BigEndian:
		return layoutFor(StructNoteHeader, Class64, DataMSB)
	}
	return nil, fmt.Errorf("note header for byte order %v", order)
}

// ReadNotes decodes the notes stored in [start, end). Name and descriptor are
// each padded to a 4-byte boundary. A note whose header, name or descriptor
// does not fit in the range stops decoding with a MalformedNote error; the
// notes decoded before it are returned. Missing padding after the last
// descriptor is accepted.
func ReadNotes(r io.ReaderAt, start, end int64, order binary.ByteOrder) ([]Note, error) {
	l, err := noteLayout(order)
	if err != nil {
		return nil, newError(KindLayout, start, err)
	}
	if end < start {
		return nil, errorf(KindMalformedNote, start, "segment end 0x%x before start", end)
	}
	var notes []Note
	for cur := start; cur < end; {
		if end-cur < noteHeaderSize {
			return notes, errorf(KindMalformedNote, cur, "%d trailing bytes, need %d for a note header", end-cur, noteHeaderSize)
		}
		rec, err := readLayout(r, cur, l)
		if err != nil {
			return notes, err
		}
		hdr := NoteHeader{
			NameSize: uint32(rec[fNameSize]),
			DescSize: uint32(rec[fDescSize]),
			Type:     uint32(rec[fType]),
		}
		nameOff := cur + noteHeaderSize
		descOff := nameOff + int64(align4(uint64(hdr.NameSize)))
		descEnd := descOff + int64(hdr.DescSize)
		if descOff > end || descEnd > end {
			return notes, errorf(KindMalformedNote, cur,
				"name size %d and descriptor size %d exceed segment end 0x%x", hdr.NameSize, hdr.DescSize, end)
		}
		name, err := readAt(r, nameOff, int(hdr.NameSize))
		if err != nil {
			return notes, err
		}
		desc, err := readAt(r, descOff, int(hdr.DescSize))
		if err != nil {
			return notes, err
		}
		notes = append(notes, Note{
			NoteHeader: hdr,
			Offset:     cur,
			Name:       strings.TrimRight(string(name), "\x00"),
			Desc:       desc,
		})
		cur = descOff + int64(align4(uint64(hdr.DescSize)))
	}
	return notes, nil
}

func (h NoteHeader) record() record {
	var rec record
	rec[fNameSize] = uint64(h.NameSize)
	rec[fDescSize] = uint64(h.DescSize)
	rec[fType] = uint64(h.Type)
	return rec
}
