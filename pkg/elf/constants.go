package elf

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// File format constants
const (
	// Size of the identification block in bytes
	identSize = elf.EI_NIDENT

	// Number of signature bytes at the start of the identification block
	magicSize = 4

	// Size of a note header: namesz, descsz, type
	noteHeaderSize = 12

	// Note names and descriptors are padded to this boundary
	noteAlign = 4

	// Segment type of a note segment
	ptNote = uint32(elf.PT_NOTE)
)

var magic = [magicSize]byte{0x7f, 'E', 'L', 'F'}

// Class is the word size of an ELF file.
type Class uint8

const (
	ClassNone Class = 0
	Class32   Class = 1
	Class64   Class = 2
)

func (c Class) String() string {
	switch c {
	case Class32:
		return "ELF32"
	case Class64:
		return "ELF64"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Data is the byte order of an ELF file.
type Data uint8

const (
	DataNone Data = 0
	DataLSB  Data = 1
	DataMSB  Data = 2
)

func (d Data) String() string {
	switch d {
	case DataLSB:
		return "little endian"
	case DataMSB:
		return "big endian"
	default:
		return fmt.Sprintf("Data(%d)", uint8(d))
	}
}

func (d Data) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// order returns the byte order for d, or nil if d is not recognized.
func (d Data) order() binary.ByteOrder {
	switch d {
	case DataLSB:
		return binary.LittleEndian
	case DataMSB:
		return binary.BigEndian
	}
	return nil
}

// Note types carried by build-id notes.
const (
	ntGNUBuildID = 3 // NT_GNU_BUILD_ID, owner "GNU"
	ntGoBuildID  = 4 // owner "Go"
)
