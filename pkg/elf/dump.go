package elf

import (
	"bufio"
	"debug/elf"
	"io"
	"strconv"
	"strings"
)

const indentLevel = "  "

const hexDigits = "0123456789abcdef"

func writeHex(w *bufio.Writer, v uint64, size int) {
	w.WriteString("0x")
	for i := size * 2; i > 0; i-- {
		w.WriteByte(hexDigits[(v>>(uint(i-1)*4))&15])
	}
}

func writeHexStr(w *bufio.Writer, b []byte) {
	for i, c := range b {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteByte(hexDigits[c>>4])
		w.WriteByte(hexDigits[c&15])
	}
}

type dumpField struct {
	name string
	data interface{}
	hint string
}

func dumpFields(w *bufio.Writer, prefix string, fields []dumpField) {
	var maxName int
	for _, f := range fields {
		if len(f.name) > maxName {
			maxName = len(f.name)
		}
	}
	for _, f := range fields {
		w.WriteString(prefix)
		w.WriteString(f.name)
		w.WriteByte(':')
		w.WriteString(strings.Repeat(" ", maxName+2-len(f.name)))
		switch v := f.data.(type) {
		case []byte:
			writeHexStr(w, v)
		case string:
			w.WriteString(strconv.Quote(v))
		case uint8:
			writeHex(w, uint64(v), 1)
		case uint16:
			writeHex(w, uint64(v), 2)
		case uint32:
			writeHex(w, uint64(v), 4)
		case uint64:
			writeHex(w, v, 8)
		case int64:
			writeHex(w, uint64(v), 8)
		case int:
			w.WriteString(strconv.Itoa(v))
		default:
			panic("unknown field type for " + f.name)
		}
		if f.hint != "" {
			w.WriteString("  ")
			w.WriteString(f.hint)
		}
		w.WriteByte('\n')
	}
}

// DumpText writes the identification, in text format, to the writer.
func (id *Identification) DumpText(w *bufio.Writer, prefix string) {
	dumpFields(w, prefix, []dumpField{
		{"Magic", id.Magic[:], ""},
		{"Class", uint8(id.Class), id.Class.String()},
		{"Data", uint8(id.Data), id.Data.String()},
		{"Version", id.Version, ""},
		{"OS/ABI", id.OSABI, elf.OSABI(id.OSABI).String()},
		{"ABI Version", id.ABIVersion, ""},
	})
}

// DumpText writes the file header, in text format, to the writer.
func (h *FileHeader) DumpText(w *bufio.Writer, prefix string) {
	dumpFields(w, prefix, []dumpField{
		{"Type", h.Type, elf.Type(h.Type).String()},
		{"Machine", h.Machine, elf.Machine(h.Machine).String()},
		{"Version", h.Version, ""},
		{"Entry", h.Entry, ""},
		{"Program Header Offset", h.PhOff, ""},
		{"Section Header Offset", h.ShOff, ""},
		{"Flags", h.Flags, ""},
		{"Header Size", h.EhSize, ""},
		{"Program Header Size", h.PhEntSize, ""},
		{"Program Header Count", h.PhNum, ""},
		{"Section Header Size", h.ShEntSize, ""},
		{"Section Header Count", h.ShNum, ""},
		{"Section Name Index", h.ShStrNdx, ""},
	})
}

// DumpText writes the program header, in text format, to the writer.
func (p *ProgramHeader) DumpText(w *bufio.Writer, prefix string) {
	dumpFields(w, prefix, []dumpField{
		{"Type", p.Type, elf.ProgType(p.Type).String()},
		{"Flags", p.Flags, elf.ProgFlag(p.Flags).String()},
		{"Offset", p.Offset, ""},
		{"Virtual Address", p.Vaddr, ""},
		{"Physical Address", p.Paddr, ""},
		{"File Size", p.Filesz, ""},
		{"Memory Size", p.Memsz, ""},
		{"Alignment", p.Align, ""},
	})
}

// DumpText writes the note, in text format, to the writer.
func (n *Note) DumpText(w *bufio.Writer, prefix string) {
	dumpFields(w, prefix, []dumpField{
		{"Offset", n.Offset, ""},
		{"Name Size", n.NameSize, ""},
		{"Desc Size", n.DescSize, ""},
		{"Type", n.Type, ""},
		{"Name", n.Name, ""},
		{"Desc", n.Desc, ""},
	})
}

// Dump writes the whole file, in text format, to the writer.
func (f *File) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	f.DumpText(bw, "")
	return bw.Flush()
}

// DumpText writes the whole file, in text format, to the writer. Every line
// starts with prefix.
func (f *File) DumpText(w *bufio.Writer, prefix string) {
	nprefix1 := prefix + indentLevel
	w.WriteString(prefix)
	w.WriteString("Ident:\n")
	f.Ident.DumpText(w, nprefix1)
	w.WriteString(prefix)
	w.WriteString("Header:\n")
	f.Header.DumpText(w, nprefix1)
	for i := range f.Progs {
		w.WriteString(prefix)
		w.WriteString("Program Header ")
		w.WriteString(strconv.Itoa(i))
		w.WriteString(":\n")
		f.Progs[i].DumpText(w, nprefix1)
	}
	for i := range f.Notes {
		w.WriteString(prefix)
		w.WriteString("Note ")
		w.WriteString(strconv.Itoa(i))
		w.WriteString(":\n")
		f.Notes[i].DumpText(w, nprefix1)
	}
	w.WriteString(prefix)
	w.WriteString("State: ")
	w.WriteString(f.State.String())
	w.WriteByte('\n')
	if f.Err != nil {
		w.WriteString(nprefix1)
		w.WriteString("Error: ")
		w.WriteString(f.Err.Error())
		w.WriteByte('\n')
	}
}

func (f *File) String() string {
	var sb strings.Builder
	_ = f.Dump(&sb)
	return sb.String()
}
