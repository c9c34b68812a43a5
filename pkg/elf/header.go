package elf

import (
	"io"
)

// FileHeader is the ELF file header that follows the identification block.
// The field set is identical for every class and byte order.
type FileHeader struct {
	Type      uint16 `json:"type" yaml:"type"`
	Machine   uint16 `json:"machine" yaml:"machine"`
	Version   uint32 `json:"version" yaml:"version"`
	Entry     uint64 `json:"entry" yaml:"entry"`
	PhOff     uint64 `json:"phoff" yaml:"phoff"`
	ShOff     uint64 `json:"shoff" yaml:"shoff"`
	Flags     uint32 `json:"flags" yaml:"flags"`
	EhSize    uint16 `json:"ehsize" yaml:"ehsize"`
	PhEntSize uint16 `json:"phentsize" yaml:"phentsize"`
	PhNum     uint16 `json:"phnum" yaml:"phnum"`
	ShEntSize uint16 `json:"shentsize" yaml:"shentsize"`
	ShNum     uint16 `json:"shnum" yaml:"shnum"`
	ShStrNdx  uint16 `json:"shstrndx" yaml:"shstrndx"`
}

// ReadFileHeader decodes the file header at off, which must point right after
// the identification block. Offsets and counts are not checked against the
// size of the byte source.
func ReadFileHeader(r io.ReaderAt, off int64, id Identification) (FileHeader, error) {
	l, err := layoutFor(StructFileHeader, id.Class, id.Data)
	if err != nil {
		return FileHeader{}, newError(KindLayout, off, err)
	}
	rec, err := readLayout(r, off, l)
	if err != nil {
		return FileHeader{}, err
	}
	return FileHeader{
		Type:      uint16(rec[fType]),
		Machine:   uint16(rec[fMachine]),
		Version:   uint32(rec[fVersion]),
		Entry:     rec[fEntry],
		PhOff:     rec[fPhOff],
		ShOff:     rec[fShOff],
		Flags:     uint32(rec[fFlags]),
		EhSize:    uint16(rec[fEhSize]),
		PhEntSize: uint16(rec[fPhEntSize]),
		PhNum:     uint16(rec[fPhNum]),
		ShEntSize: uint16(rec[fShEntSize]),
		ShNum:     uint16(rec[fShNum]),
		ShStrNdx:  uint16(rec[fShStrNdx]),
	}, nil
}

func (h FileHeader) record() record {
	var rec record
	rec[fType] = uint64(h.Type)
	rec[fMachine] = uint64(h.Machine)
	rec[fVersion] = uint64(h.Version)
	rec[fEntry] = h.Entry
	rec[fPhOff] = h.PhOff
	rec[fShOff] = h.ShOff
	rec[fFlags] = uint64(h.Flags)
	rec[fEhSize] = uint64(h.EhSize)
	rec[fPhEntSize] = uint64(h.PhEntSize)
	rec[fPhNum] = uint64(h.PhNum)
	rec[fShEntSize] = uint64(h.ShEntSize)
	rec[fShNum] = uint64(h.ShNum)
	rec[fShStrNdx] = uint64(h.ShStrNdx)
	return rec
}
