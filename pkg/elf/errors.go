package elf

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a parse failure.
type ErrorKind uint8

const (
	KindInvalidMagic ErrorKind = iota + 1
	KindUnsupportedClass
	KindUnsupportedByteOrder
	KindLayout
	KindTruncatedFile
	KindMalformedNote
)

var (
	ErrInvalidMagic         = errors.New("not an ELF file")
	ErrUnsupportedClass     = errors.New("unsupported ELF class")
	ErrUnsupportedByteOrder = errors.New("unsupported ELF byte order")
	ErrLayout               = errors.New("no layout for ELF variant")
	ErrTruncatedFile        = errors.New("truncated ELF file")
	ErrMalformedNote        = errors.New("malformed ELF note")
)

var kindErrors = [...]error{
	KindInvalidMagic:         ErrInvalidMagic,
	KindUnsupportedClass:     ErrUnsupportedClass,
	KindUnsupportedByteOrder: ErrUnsupportedByteOrder,
	KindLayout:               ErrLayout,
	KindTruncatedFile:        ErrTruncatedFile,
	KindMalformedNote:        ErrMalformedNote,
}

// label is used as the metrics result label.
func (k ErrorKind) label() string {
	switch k {
	case KindInvalidMagic:
		return "invalid_magic"
	case KindUnsupportedClass:
		return "unsupported_class"
	case KindUnsupportedByteOrder:
		return "unsupported_byte_order"
	case KindLayout:
		return "layout"
	case KindTruncatedFile:
		return "truncated"
	case KindMalformedNote:
		return "malformed_note"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	if int(k) < len(kindErrors) && kindErrors[k] != nil {
		return kindErrors[k]
	}
	return errors.New("unknown ELF parse error")
}

// A ParseError reports a failure to decode a structure at an absolute offset
// of the byte source.
type ParseError struct {
	Kind   ErrorKind
	Offset int64
	Err    error // underlying cause, may be nil
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at offset 0x%x: %v", e.Kind.sentinel(), e.Offset, e.Err)
	}
	return fmt.Sprintf("%v at offset 0x%x", e.Kind.sentinel(), e.Offset)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTruncatedFile) and friends work.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind ErrorKind, off int64, cause error) *ParseError {
	return &ParseError{Kind: kind, Offset: off, Err: cause}
}

func errorf(kind ErrorKind, off int64, format string, args ...interface{}) *ParseError {
	return newError(kind, off, fmt.Errorf(format, args...))
}

// KindOf returns the kind of a parse error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
