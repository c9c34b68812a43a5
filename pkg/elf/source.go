package elf

import (
	"io"
)

// readUpTo reads at most n bytes at off. Running out of input is not an
// error: the bytes read so far are returned. The buffer grows with the data
// actually read, so a bogus size from the file does not allocate up front.
func readUpTo(r io.ReaderAt, off int64, n int) ([]byte, error) {
	if off < 0 {
		return nil, errorf(KindTruncatedFile, off, "negative offset")
	}
	buf, err := io.ReadAll(io.NewSectionReader(r, off, int64(n)))
	if err != nil {
		return buf, errorf(KindTruncatedFile, off, "read %d of %d bytes: %w", len(buf), n, err)
	}
	return buf, nil
}

// readAt reads exactly n bytes at off. A short read is reported as a
// truncated file at the offset of the structure being read.
func readAt(r io.ReaderAt, off int64, n int) ([]byte, error) {
	buf, err := readUpTo(r, off, n)
	if err != nil {
		return nil, err
	}
	if len(buf) < n {
		return nil, errorf(KindTruncatedFile, off, "read %d of %d bytes: %w", len(buf), n, io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// readLayout reads and decodes one structure of layout l at off.
func readLayout(r io.ReaderAt, off int64, l *Layout) (record, error) {
	buf, err := readAt(r, off, l.Size())
	if err != nil {
		return record{}, err
	}
	return l.decode(buf), nil
}
