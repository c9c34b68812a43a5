package elf

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Identification is the decoded e_ident block at the start of an ELF file.
type Identification struct {
	Magic      [magicSize]byte `json:"-" yaml:"-"`
	Class      Class           `json:"class" yaml:"class"`
	Data       Data            `json:"data" yaml:"data"`
	Version    uint8           `json:"version" yaml:"version"`
	OSABI      uint8           `json:"osabi" yaml:"osabi"`
	ABIVersion uint8           `json:"abi_version" yaml:"abi_version"`
}

// ByteOrder returns the byte order of every multi-byte field in the file.
func (id Identification) ByteOrder() binary.ByteOrder {
	return id.Data.order()
}

// ReadIdentification decodes the identification block at off. The signature
// is checked before anything else is read, then the class and data bytes,
// then the rest of the block. A source that ends early is reported as
// truncated only if the bytes it does hold are still valid.
func ReadIdentification(r io.ReaderAt, off int64) (Identification, error) {
	sig, err := readUpTo(r, off, magicSize)
	if err != nil {
		return Identification{}, err
	}
	if !bytes.Equal(sig, magic[:len(sig)]) {
		return Identification{}, errorf(KindInvalidMagic, off, "bad signature %q", sig)
	}
	if len(sig) < magicSize {
		return Identification{}, errorf(KindTruncatedFile, off, "read %d of %d signature bytes: %w", len(sig), magicSize, io.ErrUnexpectedEOF)
	}

	cd, err := readUpTo(r, off+magicSize, 2)
	if err != nil {
		return Identification{}, err
	}
	if len(cd) > 0 {
		if err := checkClass(Class(cd[0]), off); err != nil {
			return Identification{}, err
		}
	}
	if len(cd) > 1 {
		if err := checkData(Data(cd[1]), off); err != nil {
			return Identification{}, err
		}
	}

	rec, err := readLayout(r, off, identLayout)
	if err != nil {
		return Identification{}, err
	}
	return Identification{
		Magic:      magic,
		Class:      Class(rec[fClass]),
		Data:       Data(rec[fData]),
		Version:    uint8(rec[fIdentVersion]),
		OSABI:      uint8(rec[fOSABI]),
		ABIVersion: uint8(rec[fABIVersion]),
	}, nil
}

func checkClass(c Class, off int64) error {
	switch c {
	case Class32, Class64:
		return nil
	}
	return errorf(KindUnsupportedClass, off+magicSize, "class %d", uint8(c))
}

func checkData(d Data, off int64) error {
	switch d {
	case DataLSB, DataMSB:
		return nil
	}
	return errorf(KindUnsupportedByteOrder, off+magicSize+1, "data encoding %d", uint8(d))
}
