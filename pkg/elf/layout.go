package elf

import (
	"encoding/binary"
	"fmt"
)

// Struct names one of the fixed-layout structures of an ELF file.
type Struct uint8

const (
	StructIdent Struct = iota + 1
	StructFileHeader
	StructProgramHeader
	StructNoteHeader
)

func (s Struct) String() string {
	switch s {
	case StructIdent:
		return "Ident"
	case StructFileHeader:
		return "FileHeader"
	case StructProgramHeader:
		return "ProgramHeader"
	case StructNoteHeader:
		return "NoteHeader"
	default:
		return fmt.Sprintf("Struct(%d)", uint8(s))
	}
}

type fieldID uint8

const (
	fPad fieldID = iota

	// identification
	fMagic
	fClass
	fData
	fIdentVersion
	fOSABI
	fABIVersion

	// shared by file, program and note headers
	fType
	fFlags

	// file header
	fMachine
	fVersion
	fEntry
	fPhOff
	fShOff
	fEhSize
	fPhEntSize
	fPhNum
	fShEntSize
	fShNum
	fShStrNdx

	// program header
	fOffset
	fVaddr
	fPaddr
	fFilesz
	fMemsz
	fAlign

	// note header
	fNameSize
	fDescSize

	numFields
)

type field struct {
	id    fieldID
	width int
}

// record holds decoded field values indexed by field id.
type record [numFields]uint64

// A Layout is the exact on-disk shape of one structure for one ELF variant.
type Layout struct {
	Struct Struct
	Class  Class
	Data   Data

	order  binary.ByteOrder
	fields []field
	size   int
}

func newLayout(s Struct, c Class, d Data, order binary.ByteOrder, fields []field) *Layout {
	l := &Layout{Struct: s, Class: c, Data: d, order: order, fields: fields}
	for _, f := range fields {
		l.size += f.width
	}
	return l
}

// Size returns the encoded size of the structure in bytes.
func (l *Layout) Size() int {
	return l.size
}

// ByteOrder returns the byte order multi-byte fields are stored in.
func (l *Layout) ByteOrder() binary.ByteOrder {
	return l.order
}

func (l *Layout) String() string {
	return fmt.Sprintf("%s/%s/%s (%d bytes)", l.Struct, l.Class, l.Data, l.size)
}

// decode reads the fields of l from buf, which must hold at least Size bytes.
func (l *Layout) decode(buf []byte) record {
	var rec record
	pos := 0
	for _, f := range l.fields {
		b := buf[pos : pos+f.width]
		pos += f.width
		if f.id == fPad {
			continue
		}
		switch f.width {
		case 1:
			rec[f.id] = uint64(b[0])
		case 2:
			rec[f.id] = uint64(l.order.Uint16(b))
		case 4:
			rec[f.id] = uint64(l.order.Uint32(b))
		case 8:
			rec[f.id] = l.order.Uint64(b)
		}
	}
	return rec
}

// encode is the inverse of decode. Values are truncated to the field width.
func (l *Layout) encode(rec record) []byte {
	buf := make([]byte, l.size)
	pos := 0
	for _, f := range l.fields {
		b := buf[pos : pos+f.width]
		pos += f.width
		if f.id == fPad {
			continue
		}
		v := rec[f.id]
		switch f.width {
		case 1:
			b[0] = byte(v)
		case 2:
			l.order.PutUint16(b, uint16(v))
		case 4:
			l.order.PutUint32(b, uint32(v))
		case 8:
			l.order.PutUint64(b, v)
		}
	}
	return buf
}

var identFields = []field{
	{fMagic, 4},
	{fClass, 1},
	{fData, 1},
	{fIdentVersion, 1},
	{fOSABI, 1},
	{fABIVersion, 1},
	{fPad, 7},
}

func fileHeaderFields(word int) []field {
	return []field{
		{fType, 2},
		{fMachine, 2},
		{fVersion, 4},
		{fEntry, word},
		{fPhOff, word},
		{fShOff, word},
		{fFlags, 4},
		{fEhSize, 2},
		{fPhEntSize, 2},
		{fPhNum, 2},
		{fShEntSize, 2},
		{fShNum, 2},
		{fShStrNdx, 2},
	}
}

// The 64-bit program header moves flags next to type so that the 8-byte
// fields stay aligned.
var (
	prog32Fields = []field{
		{fType, 4},
		{fOffset, 4},
		{fVaddr, 4},
		{fPaddr, 4},
		{fFilesz, 4},
		{fMemsz, 4},
		{fFlags, 4},
		{fAlign, 4},
	}
	prog64Fields = []field{
		{fType, 4},
		{fFlags, 4},
		{fOffset, 8},
		{fVaddr, 8},
		{fPaddr, 8},
		{fFilesz, 8},
		{fMemsz, 8},
		{fAlign, 8},
	}
	noteFields = []field{
		{fNameSize, 4},
		{fDescSize, 4},
		{fType, 4},
	}
)

// The identification block is made of single bytes, so its byte order only
// matters for the 4-byte signature, which is compared as a big-endian word.
var identLayout = newLayout(StructIdent, ClassNone, DataNone, binary.BigEndian, identFields)

var (
	fileHeader32LSB = newLayout(StructFileHeader, Class32, DataLSB, binary.LittleEndian, fileHeaderFields(4))
	fileHeader32MSB = newLayout(StructFileHeader, Class32, DataMSB, binary.BigEndian, fileHeaderFields(4))
	fileHeader64LSB = newLayout(StructFileHeader, Class64, DataLSB, binary.LittleEndian, fileHeaderFields(8))
	fileHeader64MSB = newLayout(StructFileHeader, Class64, DataMSB, binary.BigEndian, fileHeaderFields(8))

	prog32LSB = newLayout(StructProgramHeader, Class32, DataLSB, binary.LittleEndian, prog32Fields)
	prog32MSB = newLayout(StructProgramHeader, Class32, DataMSB, binary.BigEndian, prog32Fields)
	prog64LSB = newLayout(StructProgramHeader, Class64, DataLSB, binary.LittleEndian, prog64Fields)
	prog64MSB = newLayout(StructProgramHeader, Class64, DataMSB, binary.BigEndian, prog64Fields)

	// Note headers use 4-byte words in both classes.
	note32LSB = newLayout(StructNoteHeader, Class32, DataLSB, binary.LittleEndian, noteFields)
	note32MSB = newLayout(StructNoteHeader, Class32, DataMSB, binary.BigEndian, noteFields)
	note64LSB = newLayout(StructNoteHeader, Class64, DataLSB, binary.LittleEndian, noteFields)
	note64MSB = newLayout(StructNoteHeader, Class64, DataMSB, binary.BigEndian, noteFields)
)

type variant struct {
	class Class
	data  Data
}

// LayoutFor returns the layout of structure s for the given class and byte
// order. The identification block has a single layout and ignores both.
func LayoutFor(s Struct, class Class, data Data) (*Layout, error) {
	l, err := layoutFor(s, class, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayout, err)
	}
	return l, nil
}

// layoutFor is LayoutFor with an error that does not repeat ErrLayout, for
// callers that wrap it in a ParseError of KindLayout.
func layoutFor(s Struct, class Class, data Data) (*Layout, error) {
	if s == StructIdent {
		return identLayout, nil
	}
	v := variant{class, data}
	switch s {
	case StructFileHeader:
		switch v {
		case variant{Class32, DataLSB}:
			return fileHeader32LSB, nil
		case variant{Class32, DataMSB}:
			return fileHeader32MSB, nil
		case variant{Class64, DataLSB}:
			return fileHeader64LSB, nil
		case variant{Class64, DataMSB}:
			return fileHeader64MSB, nil
		}
	case StructProgramHeader:
		switch v {
		case variant{Class32, DataLSB}:
			return prog32LSB, nil
		case variant{Class32, DataMSB}:
			return prog32MSB, nil
		case variant{Class64, DataLSB}:
			return prog64LSB, nil
		case variant{Class64, DataMSB}:
			return prog64MSB, nil
		}
	case StructNoteHeader:
		switch v {
		case variant{Class32, DataLSB}:
			return note32LSB, nil
		case variant{Class32, DataMSB}:
			return note32MSB, nil
		case variant{Class64, DataLSB}:
			return note64LSB, nil
		case variant{Class64, DataMSB}:
			return note64MSB, nil
		}
	}
	return nil, fmt.Errorf("%s for %s/%s", s, class, data)
}
