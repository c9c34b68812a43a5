package elf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// testFile describes an ELF image to be encoded with the package layouts.
type testFile struct {
	class Class
	data  Data
	osabi uint8

	hdr   FileHeader
	progs []ProgramHeader
	blobs []blob // raw bytes at offsets relative to the image start

	// phnum overrides the program header count written to the header.
	phnum int
}

type blob struct {
	off  int64
	data []byte
}

func put(buf []byte, off int64, b []byte) []byte {
	if end := int(off) + len(b); end > len(buf) {
		buf = append(buf, make([]byte, end-len(buf))...)
	}
	copy(buf[off:], b)
	return buf
}

func (tf testFile) build(t testing.TB) []byte {
	t.Helper()
	var id record
	id[fMagic] = uint64(binary.BigEndian.Uint32(magic[:]))
	id[fClass] = uint64(tf.class)
	id[fData] = uint64(tf.data)
	id[fIdentVersion] = 1
	id[fOSABI] = uint64(tf.osabi)

	hl, err := LayoutFor(StructFileHeader, tf.class, tf.data)
	require.NoError(t, err)
	pl, err := LayoutFor(StructProgramHeader, tf.class, tf.data)
	require.NoError(t, err)

	hdr := tf.hdr
	if hdr.EhSize == 0 {
		hdr.EhSize = uint16(identSize + hl.Size())
	}
	if hdr.PhEntSize == 0 {
		hdr.PhEntSize = uint16(pl.Size())
	}
	if hdr.PhOff == 0 && len(tf.progs) > 0 {
		hdr.PhOff = uint64(hdr.EhSize)
	}
	hdr.PhNum = uint16(len(tf.progs))
	if tf.phnum != 0 {
		hdr.PhNum = uint16(tf.phnum)
	}

	buf := identLayout.encode(id)
	buf = put(buf, identSize, hl.encode(hdr.record()))
	for i, p := range tf.progs {
		buf = put(buf, programHeaderOffset(0, hdr, i), pl.encode(p.record()))
	}
	for _, b := range tf.blobs {
		buf = put(buf, b.off, b.data)
	}
	return buf
}

// noteBytes encodes one note with its name NUL-terminated and both name and
// descriptor padded to 4 bytes.
func noteBytes(order binary.ByteOrder, name string, typ uint32, desc []byte) []byte {
	nl := noteLayout32(order)
	hdr := NoteHeader{NameSize: uint32(len(name) + 1), DescSize: uint32(len(desc)), Type: typ}
	var b bytes.Buffer
	b.Write(nl.encode(hdr.record()))
	b.WriteString(name)
	b.WriteByte(0)
	for b.Len()%noteAlign != 0 {
		b.WriteByte(0)
	}
	b.Write(desc)
	for b.Len()%noteAlign != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func noteLayout32(order binary.ByteOrder) *Layout {
	if order == binary.BigEndian {
		return note32MSB
	}
	return note32LSB
}

type readCall struct {
	off int64
	n   int
}

// recordingReader remembers every ReadAt call.
type recordingReader struct {
	r     io.ReaderAt
	calls []readCall
}

func (rr *recordingReader) ReadAt(p []byte, off int64) (int, error) {
	rr.calls = append(rr.calls, readCall{off: off, n: len(p)})
	return rr.r.ReadAt(p, off)
}

func (rr *recordingReader) maxEnd() int64 {
	var end int64
	for _, c := range rr.calls {
		if e := c.off + int64(c.n); e > end {
			end = e
		}
	}
	return end
}
