package elf

import (
	"io"
)

// ProgramHeader is one entry of the program header table.
type ProgramHeader struct {
	Type   uint32 `json:"type" yaml:"type"`
	Flags  uint32 `json:"flags" yaml:"flags"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Vaddr  uint64 `json:"vaddr" yaml:"vaddr"`
	Paddr  uint64 `json:"paddr" yaml:"paddr"`
	Filesz uint64 `json:"filesz" yaml:"filesz"`
	Memsz  uint64 `json:"memsz" yaml:"memsz"`
	Align  uint64 `json:"align" yaml:"align"`
}

// IsNote reports whether the segment holds a sequence of notes.
func (p ProgramHeader) IsNote() bool {
	return p.Type == ptNote
}

// ReadProgramHeaders decodes h.PhNum entries. Entry i is read at
// fileOff + h.PhOff + i*h.PhEntSize. If the byte source ends inside the table,
// the entries decoded so far are returned together with a TruncatedFile error.
func ReadProgramHeaders(r io.ReaderAt, fileOff int64, h FileHeader, id Identification) ([]ProgramHeader, error) {
	l, err := layoutFor(StructProgramHeader, id.Class, id.Data)
	if err != nil {
		return nil, newError(KindLayout, fileOff+int64(h.PhOff), err)
	}
	progs := make([]ProgramHeader, 0, int(h.PhNum))
	for i := 0; i < int(h.PhNum); i++ {
		off := programHeaderOffset(fileOff, h, i)
		rec, err := readLayout(r, off, l)
		if err != nil {
			return progs, err
		}
		progs = append(progs, ProgramHeader{
			Type:   uint32(rec[fType]),
			Flags:  uint32(rec[fFlags]),
			Offset: rec[fOffset],
			Vaddr:  rec[fVaddr],
			Paddr:  rec[fPaddr],
			Filesz: rec[fFilesz],
			Memsz:  rec[fMemsz],
			Align:  rec[fAlign],
		})
	}
	return progs, nil
}

func programHeaderOffset(fileOff int64, h FileHeader, i int) int64 {
	return fileOff + int64(h.PhOff) + int64(i)*int64(h.PhEntSize)
}

func (p ProgramHeader) record() record {
	var rec record
	rec[fType] = uint64(p.Type)
	rec[fFlags] = uint64(p.Flags)
	rec[fOffset] = p.Offset
	rec[fVaddr] = p.Vaddr
	rec[fPaddr] = p.Paddr
	rec[fFilesz] = p.Filesz
	rec[fMemsz] = p.Memsz
	rec[fAlign] = p.Align
	return rec
}
