package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var variants = []struct {
	class Class
	data  Data
}{
	{Class32, DataLSB},
	{Class32, DataMSB},
	{Class64, DataLSB},
	{Class64, DataMSB},
}

func TestParseMinimal(t *testing.T) {
	for _, v := range variants {
		t.Run(v.class.String()+"/"+v.data.String(), func(t *testing.T) {
			hdr := FileHeader{
				Type:      uint16(elf.ET_EXEC),
				Machine:   uint16(elf.EM_ARM),
				Version:   1,
				Entry:     0x8048000,
				ShOff:     0x1234,
				Flags:     0x5000200,
				EhSize:    0x40,
				PhEntSize: 0x38,
				ShEntSize: 0x40,
				ShNum:     7,
				ShStrNdx:  6,
			}
			data := testFile{class: v.class, data: v.data, osabi: 3, hdr: hdr}.build(t)

			f, err := Parse(bytes.NewReader(data), 0)
			require.NoError(t, err)
			require.Equal(t, StateComplete, f.State)
			require.NoError(t, f.Err)
			require.Equal(t, Identification{
				Magic:   magic,
				Class:   v.class,
				Data:    v.data,
				Version: 1,
				OSABI:   3,
			}, f.Ident)
			require.Equal(t, hdr, f.Header)
			require.Empty(t, f.Progs)
			require.Empty(t, f.Notes)
		})
	}
}

func TestParseAgainstStdlibHeader(t *testing.T) {
	h := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_PPC64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     0x10000000,
		Phoff:     64,
		Flags:     2,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     3,
		Shentsize: 64,
	}
	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	h.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_LINUX)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, h))
	for i := 0; i < 3; i++ {
		p := elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(elf.PF_R) | uint32(i),
			Off:    uint64(0x1000 * i),
			Vaddr:  0x10000000 + uint64(0x1000*i),
			Paddr:  0x20000000 + uint64(0x1000*i),
			Filesz: 0x100 + uint64(i),
			Memsz:  0x200 + uint64(i),
			Align:  0x1000,
		}
		require.NoError(t, binary.Write(&buf, binary.BigEndian, p))
	}
	data := buf.Bytes()

	f, err := Parse(bytes.NewReader(data), 0)
	require.NoError(t, err)
	std, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, Class64, f.Ident.Class)
	require.Equal(t, DataMSB, f.Ident.Data)
	require.Equal(t, uint8(elf.ELFOSABI_LINUX), f.Ident.OSABI)
	require.Equal(t, uint16(std.Type), f.Header.Type)
	require.Equal(t, uint16(std.Machine), f.Header.Machine)
	require.Equal(t, std.Entry, f.Header.Entry)
	require.Len(t, f.Progs, len(std.Progs))
	for i, p := range std.Progs {
		got := f.Progs[i]
		assert.Equal(t, uint32(p.Type), got.Type)
		assert.Equal(t, uint32(p.Flags), got.Flags)
		assert.Equal(t, p.Off, got.Offset)
		assert.Equal(t, p.Vaddr, got.Vaddr)
		assert.Equal(t, p.Paddr, got.Paddr)
		assert.Equal(t, p.Filesz, got.Filesz)
		assert.Equal(t, p.Memsz, got.Memsz)
		assert.Equal(t, p.Align, got.Align)
	}
}

func TestParseInvalidMagic(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("MZ\x90\x00 definitely not an ELF file"),
		{0x7f, 'E', 'L', 'G', 2, 1, 1},
		[]byte("MZ"),
		{0x7e},
	} {
		rr := &recordingReader{r: bytes.NewReader(data)}
		f, err := Parse(rr, 0)
		require.Nil(t, f)
		require.ErrorIs(t, err, ErrInvalidMagic, "%q", data)
		require.Equal(t, KindInvalidMagic, KindOf(err))
		require.LessOrEqual(t, rr.maxEnd(), int64(magicSize))
	}
}

func TestParseShortSignature(t *testing.T) {
	for _, data := range [][]byte{nil, {0x7f}, {0x7f, 'E', 'L'}} {
		f, err := Parse(bytes.NewReader(data), 0)
		require.Nil(t, f)
		require.ErrorIs(t, err, ErrTruncatedFile, "%q", data)
	}
}

// A short identification block still reports a bad class or byte order when
// those bytes are present.
func TestParseShortIdent(t *testing.T) {
	for _, tc := range []struct {
		data []byte
		want error
		off  int64
	}{
		{[]byte{0x7f, 'E', 'L', 'F', 9}, ErrUnsupportedClass, 4},
		{[]byte{0x7f, 'E', 'L', 'F', 9, 1}, ErrUnsupportedClass, 4},
		{[]byte{0x7f, 'E', 'L', 'F', 2, 7}, ErrUnsupportedByteOrder, 5},
		{[]byte{0x7f, 'E', 'L', 'F', 2}, ErrTruncatedFile, 0},
		{[]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, ErrTruncatedFile, 0},
	} {
		f, err := Parse(bytes.NewReader(tc.data), 0)
		require.Nil(t, f)
		require.ErrorIs(t, err, tc.want, "% x", tc.data)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, tc.off, pe.Offset, "% x", tc.data)
	}
}

func TestParseUnsupportedIdent(t *testing.T) {
	data := testFile{class: Class64, data: DataLSB}.build(t)

	bad := append([]byte(nil), data...)
	bad[elf.EI_CLASS] = 3
	_, err := Parse(bytes.NewReader(bad), 0)
	require.ErrorIs(t, err, ErrUnsupportedClass)

	bad = append([]byte(nil), data...)
	bad[elf.EI_DATA] = 0
	_, err = Parse(bytes.NewReader(bad), 0)
	require.ErrorIs(t, err, ErrUnsupportedByteOrder)

	_, err = Parse(bytes.NewReader(data[:identSize+10]), 0)
	require.ErrorIs(t, err, ErrTruncatedFile)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, int64(identSize), pe.Offset)
}

func TestParseProgramHeaderOffsets(t *testing.T) {
	const base = 0x80
	progs := []ProgramHeader{
		{Type: uint32(elf.PT_LOAD), Flags: 5, Offset: 0, Vaddr: 0x400000, Filesz: 0x1000, Memsz: 0x1000, Align: 0x1000},
		{Type: uint32(elf.PT_LOAD), Flags: 6, Offset: 0x1000, Vaddr: 0x401000, Filesz: 0x20, Memsz: 0x80, Align: 0x1000},
		{Type: uint32(elf.PT_GNU_STACK), Flags: 6},
	}
	image := testFile{
		class: Class64,
		data:  DataMSB,
		hdr:   FileHeader{PhOff: 0x100, PhEntSize: 0x40},
		progs: progs,
	}.build(t)
	data := append(bytes.Repeat([]byte{0xaa}, base), image...)

	rr := &recordingReader{r: bytes.NewReader(data)}
	f, err := Parse(rr, base, WithNotes(false))
	require.NoError(t, err)
	require.Equal(t, progs, f.Progs)

	var offsets []int64
	for _, c := range rr.calls {
		if c.n == prog64MSB.Size() {
			offsets = append(offsets, c.off)
		}
	}
	require.Equal(t, []int64{base + 0x100, base + 0x140, base + 0x180}, offsets)
}

func TestParseFlagsPerClass(t *testing.T) {
	p := ProgramHeader{Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R | elf.PF_X), Offset: 0x40, Vaddr: 0x1000, Paddr: 0x2000, Filesz: 0x10, Memsz: 0x30, Align: 0x10}
	for _, v := range variants {
		data := testFile{class: v.class, data: v.data, progs: []ProgramHeader{p}}.build(t)
		f, err := Parse(bytes.NewReader(data), 0)
		require.NoError(t, err)
		require.Equal(t, []ProgramHeader{p}, f.Progs, "%s/%s", v.class, v.data)
	}

	data32 := testFile{class: Class32, data: DataLSB, progs: []ProgramHeader{p}}.build(t)
	data64 := testFile{class: Class64, data: DataLSB, progs: []ProgramHeader{p}}.build(t)
	ph32 := data32[52:]
	ph64 := data64[64:]
	require.Equal(t, p.Flags, binary.LittleEndian.Uint32(ph32[24:]))
	require.Equal(t, p.Flags, binary.LittleEndian.Uint32(ph64[4:]))
}

func TestParseNoteSegment(t *testing.T) {
	desc := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	for _, v := range variants {
		t.Run(v.class.String()+"/"+v.data.String(), func(t *testing.T) {
			note := noteBytes(v.data.order(), "LINUX", 0x100, desc)
			const noteOff = 0x200
			data := testFile{
				class: v.class,
				data:  v.data,
				progs: []ProgramHeader{
					{Type: uint32(elf.PT_LOAD), Flags: 5, Filesz: 0x300, Memsz: 0x300},
					{Type: ptNote, Flags: 4, Offset: noteOff, Filesz: uint64(len(note)), Align: 4},
				},
				blobs: []blob{{noteOff, note}},
			}.build(t)

			f, err := Parse(bytes.NewReader(data), 0)
			require.NoError(t, err)
			require.Equal(t, StateComplete, f.State)
			require.Len(t, f.NoteSegments(), 1)
			require.Len(t, f.Notes, 1)
			n := f.Notes[0]
			require.Equal(t, "LINUX", n.Name)
			require.Equal(t, uint32(6), n.NameSize)
			require.Equal(t, uint32(len(desc)), n.DescSize)
			require.Equal(t, desc, n.Desc)
			require.Equal(t, uint32(0x100), n.Type)
			require.Equal(t, int64(noteOff), n.Offset)
		})
	}
}

func TestParseNotesRelativeToBase(t *testing.T) {
	const base = 0x1000
	note := noteBytes(binary.LittleEndian, "GNU", ntGNUBuildID, bytes.Repeat([]byte{0x11}, 20))
	image := testFile{
		class: Class64,
		data:  DataLSB,
		progs: []ProgramHeader{{Type: ptNote, Offset: 0x100, Filesz: uint64(len(note))}},
		blobs: []blob{{0x100, note}},
	}.build(t)
	data := append(make([]byte, base), image...)

	f, err := Parse(bytes.NewReader(data), base)
	require.NoError(t, err)
	require.Len(t, f.Notes, 1)
	require.Equal(t, int64(base+0x100), f.Notes[0].Offset)
}

// Sizes declared by the file must not drive allocations beyond the input.
func TestParseHugeNoteSizes(t *testing.T) {
	hdr := NoteHeader{NameSize: 0xfffffff0, DescSize: 0xfffffff0, Type: 1}
	data := testFile{
		class: Class64,
		data:  DataLSB,
		progs: []ProgramHeader{{Type: ptNote, Offset: 0x100, Filesz: 1 << 40}},
		blobs: []blob{{0x100, note64LSB.encode(hdr.record())}},
	}.build(t)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	f, err := Parse(bytes.NewReader(data), 0)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, ErrTruncatedFile)
	require.Equal(t, StateFailed, f.State)
	require.Empty(t, f.Notes)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, int64(0x100+noteHeaderSize), pe.Offset)
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestParseTruncatedProgramHeaders(t *testing.T) {
	progs := make([]ProgramHeader, 4)
	for i := range progs {
		progs[i] = ProgramHeader{Type: uint32(elf.PT_LOAD), Offset: uint64(i) * 0x1000, Filesz: 0x10}
	}
	data := testFile{class: Class32, data: DataMSB, progs: progs}.build(t)
	// keep two full entries and half of the third
	cut := 52 + 2*32 + 16
	f, err := Parse(bytes.NewReader(data[:cut]), 0)
	require.ErrorIs(t, err, ErrTruncatedFile)
	require.NotNil(t, f)
	require.Equal(t, StateFailed, f.State)
	require.Equal(t, err, f.Err)
	require.Equal(t, progs[:2], f.Progs)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, int64(52+2*32), pe.Offset)
}

func TestParseHeaderCountBeyondData(t *testing.T) {
	p := ProgramHeader{Type: uint32(elf.PT_LOAD)}
	data := testFile{class: Class64, data: DataLSB, progs: []ProgramHeader{p}, phnum: 2}.build(t)
	f, err := Parse(bytes.NewReader(data), 0)
	require.ErrorIs(t, err, ErrTruncatedFile)
	require.Len(t, f.Progs, 1)
}

func TestParseMalformedNoteSegment(t *testing.T) {
	good := noteBytes(binary.BigEndian, "A", 1, []byte{1, 2, 3, 4})
	bad := noteBytes(binary.BigEndian, "B", 2, []byte{1, 2, 3, 4})
	// descriptor claims more bytes than the segment holds
	binary.BigEndian.PutUint32(bad[4:], 64)
	seg := append(append([]byte(nil), good...), bad...)

	data := testFile{
		class: Class32,
		data:  DataMSB,
		progs: []ProgramHeader{{Type: ptNote, Offset: 0x100, Filesz: uint64(len(seg))}},
		blobs: []blob{{0x100, seg}, {0x100 + int64(len(seg)), make([]byte, 128)}},
	}.build(t)

	f, err := Parse(bytes.NewReader(data), 0)
	require.ErrorIs(t, err, ErrMalformedNote)
	require.Equal(t, StateFailed, f.State)
	require.Len(t, f.Progs, 1)
	require.Len(t, f.Notes, 1)
	require.Equal(t, "A", f.Notes[0].Name)
}

func TestParseWithoutNotes(t *testing.T) {
	note := noteBytes(binary.LittleEndian, "GNU", ntGNUBuildID, make([]byte, 20))
	data := testFile{
		class: Class64,
		data:  DataLSB,
		progs: []ProgramHeader{{Type: ptNote, Offset: 0x100, Filesz: uint64(len(note))}},
		blobs: []blob{{0x100, note}},
	}.build(t)
	f, err := Parse(bytes.NewReader(data), 0, WithNotes(false))
	require.NoError(t, err)
	require.Equal(t, StateComplete, f.State)
	require.Empty(t, f.Notes)
}

func TestParseIdempotent(t *testing.T) {
	note := noteBytes(binary.LittleEndian, "GNU", ntGNUBuildID, bytes.Repeat([]byte{7}, 20))
	data := testFile{
		class: Class64,
		data:  DataLSB,
		progs: []ProgramHeader{
			{Type: uint32(elf.PT_LOAD), Filesz: 0x200},
			{Type: ptNote, Offset: 0x200, Filesz: uint64(len(note))},
		},
		blobs: []blob{{0x200, note}},
	}.build(t)

	a, err := Parse(bytes.NewReader(data), 0)
	require.NoError(t, err)
	b, err := Parse(bytes.NewReader(data), 0)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("second parse differs (-first +second):\n%s", diff)
	}

	a.Progs[0].Type = 0
	a.Notes[0].Desc[0] = 0
	require.Equal(t, uint32(elf.PT_LOAD), b.Progs[0].Type)
	require.Equal(t, byte(7), b.Notes[0].Desc[0])
}

func TestOpen(t *testing.T) {
	data := testFile{class: Class64, data: DataLSB, progs: []ProgramHeader{{Type: uint32(elf.PT_LOAD)}}}.build(t)
	path := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	require.Len(t, f.Progs, 1)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestDump(t *testing.T) {
	note := noteBytes(binary.LittleEndian, "GNU", ntGNUBuildID, []byte{0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89})
	data := testFile{
		class: Class64,
		data:  DataLSB,
		hdr:   FileHeader{Type: uint16(elf.ET_DYN), Machine: uint16(elf.EM_X86_64), Entry: 0x1040},
		progs: []ProgramHeader{{Type: ptNote, Flags: uint32(elf.PF_R), Offset: 0x100, Filesz: uint64(len(note))}},
		blobs: []blob{{0x100, note}},
	}.build(t)
	f, err := Parse(bytes.NewReader(data), 0)
	require.NoError(t, err)

	out := f.String()
	for _, want := range []string{
		"Ident:\n",
		"  Class:        0x02  ELF64\n",
		"  Type:                   0x0003  ET_DYN\n",
		"  Machine:                0x003e  EM_X86_64\n",
		"  Entry:                  0x0000000000001040\n",
		"Program Header 0:\n",
		"PT_NOTE",
		"Note 0:\n",
		"  Name:       \"GNU\"\n",
		"  Desc:       ab cd ef 01 23 45 67 89\n",
		"State: complete\n",
	} {
		require.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
}
