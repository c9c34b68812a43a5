// Package elf decodes the identification block, file header, program header
// table and note segments of ELF object files.
//
// Every variant of the format is supported: 32 and 64-bit classes in little
// and big endian byte order. The layouts of the fixed-size structures are
// selected once from the identification block and applied to everything read
// after it. Section headers, symbols and relocations are not decoded.
package elf

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// State tracks how far a parse got.
type State uint8

const (
	StateUnparsed State = iota
	StateIdentificationValid
	StateHeaderDecoded
	StateProgramHeadersDecoded
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateIdentificationValid:
		return "identification-valid"
	case StateHeaderDecoded:
		return "header-decoded"
	case StateProgramHeadersDecoded:
		return "program-headers-decoded"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// File is the parsed view of one ELF object. It is never modified after Parse
// returns; parse again to get a fresh view.
type File struct {
	Offset int64           `json:"offset" yaml:"offset"`
	Ident  Identification  `json:"ident" yaml:"ident"`
	Header FileHeader      `json:"header" yaml:"header"`
	Progs  []ProgramHeader `json:"progs" yaml:"progs"`
	Notes  []Note          `json:"notes,omitempty" yaml:"notes,omitempty"`
	State  State           `json:"state" yaml:"state"`

	// Err is the error that stopped decoding of program headers or notes.
	// Progs and Notes then hold what was decoded before it.
	Err error `json:"-" yaml:"-"`
}

// Parse decodes the ELF object that starts at offset in r.
//
// If the identification block or the file header cannot be decoded, no File
// is returned. If decoding stops inside the program header table or a note
// segment, the partially filled File is returned in StateFailed together with
// the error.
func Parse(r io.ReaderAt, offset int64, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	f, err := parse(r, offset, o)
	o.metrics.observe(start, f, err)
	return f, err
}

// Open opens the named file and parses the ELF object at its start. The file
// is closed before Open returns.
func Open(name string, opts ...Option) (*File, error) {
	fp, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return Parse(fp, 0, opts...)
}

func parse(r io.ReaderAt, offset int64, o options) (*File, error) {
	logger := log.With(o.logger, "base", offset)
	f := &File{Offset: offset, State: StateUnparsed}

	id, err := ReadIdentification(r, offset)
	if err != nil {
		return nil, err
	}
	f.Ident = id
	f.State = StateIdentificationValid
	level.Debug(logger).Log("msg", "decoded identification", "class", id.Class, "data", id.Data, "osabi", id.OSABI)

	hdrOff := offset + identSize
	hdr, err := ReadFileHeader(r, hdrOff, id)
	if err != nil {
		return nil, err
	}
	f.Header = hdr
	f.State = StateHeaderDecoded
	level.Debug(logger).Log("msg", "decoded file header", "offset", hdrOff, "phoff", hdr.PhOff, "phnum", hdr.PhNum, "phentsize", hdr.PhEntSize)

	f.Progs, err = ReadProgramHeaders(r, offset, hdr, id)
	if err != nil {
		level.Debug(logger).Log("msg", "program header table cut short", "decoded", len(f.Progs), "err", err)
		return f.fail(err)
	}
	f.State = StateProgramHeadersDecoded
	level.Debug(logger).Log("msg", "decoded program headers", "count", len(f.Progs))

	if o.notes {
		for i, p := range f.Progs {
			if !p.IsNote() {
				continue
			}
			start := offset + int64(p.Offset)
			end := start + int64(p.Filesz)
			notes, err := ReadNotes(r, start, end, id.ByteOrder())
			f.Notes = append(f.Notes, notes...)
			if err != nil {
				level.Debug(logger).Log("msg", "note segment cut short", "segment", i, "err", err)
				return f.fail(err)
			}
			level.Debug(logger).Log("msg", "decoded note segment", "segment", i, "start", start, "end", end, "notes", len(notes))
		}
	}
	f.State = StateComplete
	return f, nil
}

func (f *File) fail(err error) (*File, error) {
	f.State = StateFailed
	f.Err = err
	return f, err
}

// NoteSegments returns the program headers of note segments, in table order.
func (f *File) NoteSegments() []ProgramHeader {
	var res []ProgramHeader
	for _, p := range f.Progs {
		if p.IsNote() {
			res = append(res, p)
		}
	}
	return res
}
