package inspect

import (
	"bufio"
	"debug/elf"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/xlab/treeprint"
	"gopkg.in/yaml.v3"

	elfpkg "github.com/grafana/elfinspect/pkg/elf"
)

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatTable   Format = "table"
	FormatTree    Format = "tree"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatConsole, FormatJSON, FormatYAML, FormatTable, FormatTree:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q, expected one of console, json, yaml, table, tree", s)
}

// View selects which part of each parsed file is rendered.
type View uint8

const (
	ViewAll View = iota
	ViewHeader
	ViewPrograms
	ViewNotes
	ViewBuildID
)

// resultView is the serialized form of a Result.
type resultView struct {
	Path    string                 `json:"path" yaml:"path"`
	Size    int64                  `json:"size" yaml:"size"`
	Hash    string                 `json:"hash" yaml:"hash"`
	Error   string                 `json:"error,omitempty" yaml:"error,omitempty"`
	State   string                 `json:"state,omitempty" yaml:"state,omitempty"`
	Ident   *elfpkg.Identification `json:"ident,omitempty" yaml:"ident,omitempty"`
	Header  *elfpkg.FileHeader     `json:"header,omitempty" yaml:"header,omitempty"`
	Progs   []elfpkg.ProgramHeader `json:"progs,omitempty" yaml:"progs,omitempty"`
	Notes   []elfpkg.Note          `json:"notes,omitempty" yaml:"notes,omitempty"`
	BuildID *elfpkg.BuildID        `json:"build_id,omitempty" yaml:"build_id,omitempty"`
}

func newResultView(r Result, v View) resultView {
	rv := resultView{
		Path: r.Path,
		Size: r.Size,
		Hash: strconv.FormatUint(r.Hash, 16),
	}
	if r.Err != nil {
		rv.Error = r.Err.Error()
	}
	f := r.File
	if f == nil {
		return rv
	}
	rv.State = f.State.String()
	if v == ViewAll || v == ViewHeader {
		rv.Ident = &f.Ident
		rv.Header = &f.Header
	}
	if v == ViewAll || v == ViewPrograms {
		rv.Progs = f.Progs
	}
	if v == ViewAll || v == ViewNotes {
		rv.Notes = f.Notes
	}
	if (v == ViewAll || v == ViewBuildID) && !r.BuildID.Empty() {
		id := r.BuildID
		rv.BuildID = &id
	}
	return rv
}

// Render writes results to w in the given format.
func Render(w io.Writer, results []Result, format Format, view View) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, results, view)
	case FormatYAML:
		return renderYAML(w, results, view)
	case FormatTable:
		return renderTable(w, results, view)
	case FormatTree:
		return renderTree(w, results, view)
	case FormatConsole, "":
		return renderConsole(w, results, view)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderJSON(w io.Writer, results []Result, view View) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(newResultView(r, view)); err != nil {
			return err
		}
	}
	return nil
}

func renderYAML(w io.Writer, results []Result, view View) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	views := lo.Map(results, func(r Result, _ int) resultView {
		return newResultView(r, view)
	})
	if err := enc.Encode(views); err != nil {
		return err
	}
	return enc.Close()
}

func renderConsole(w io.Writer, results []Result, view View) error {
	bw := bufio.NewWriter(w)
	heading := color.New(color.Bold)
	for i, r := range results {
		if i > 0 {
			bw.WriteByte('\n')
		}
		heading.Fprintf(bw, "%s", r.Path)
		fmt.Fprintf(bw, " (%s)\n", humanize.Bytes(uint64(r.Size)))
		if r.Err != nil {
			fmt.Fprintf(bw, "  %s %v\n", color.RedString("error:"), r.Err)
		}
		f := r.File
		if f == nil {
			continue
		}
		const prefix = "  "
		switch view {
		case ViewHeader:
			f.Ident.DumpText(bw, prefix)
			f.Header.DumpText(bw, prefix)
		case ViewPrograms:
			for j := range f.Progs {
				fmt.Fprintf(bw, "%sProgram Header %d:\n", prefix, j)
				f.Progs[j].DumpText(bw, prefix+prefix)
			}
		case ViewNotes:
			for j := range f.Notes {
				fmt.Fprintf(bw, "%sNote %d:\n", prefix, j)
				f.Notes[j].DumpText(bw, prefix+prefix)
			}
		case ViewBuildID:
			if r.BuildID.Empty() {
				fmt.Fprintf(bw, "%sno build ID\n", prefix)
			} else {
				fmt.Fprintf(bw, "%s%s %s\n", prefix, r.BuildID.Typ, r.BuildID.ID)
			}
		default:
			f.DumpText(bw, prefix)
		}
	}
	return bw.Flush()
}

func renderTable(w io.Writer, results []Result, view View) error {
	table := tablewriter.NewWriter(w)
	switch view {
	case ViewPrograms:
		table.SetHeader([]string{"Path", "#", "Type", "Flags", "Offset", "VirtAddr", "FileSize", "MemSize", "Align"})
		for _, r := range parsed(results) {
			for i, p := range r.File.Progs {
				table.Append([]string{
					r.Path,
					strconv.Itoa(i),
					elf.ProgType(p.Type).String(),
					elf.ProgFlag(p.Flags).String(),
					hex(p.Offset),
					hex(p.Vaddr),
					humanize.Bytes(p.Filesz),
					humanize.Bytes(p.Memsz),
					hex(p.Align),
				})
			}
		}
	case ViewNotes:
		table.SetHeader([]string{"Path", "Offset", "Name", "Type", "DescSize"})
		for _, r := range parsed(results) {
			for _, n := range r.File.Notes {
				table.Append([]string{
					r.Path,
					hex(uint64(n.Offset)),
					n.Name,
					hex(uint64(n.Type)),
					strconv.FormatUint(uint64(n.DescSize), 10),
				})
			}
		}
	case ViewBuildID:
		table.SetHeader([]string{"Path", "Kind", "BuildID"})
		for _, r := range results {
			table.Append([]string{r.Path, r.BuildID.Typ, r.BuildID.ID})
		}
	default:
		table.SetHeader([]string{"Path", "Size", "Class", "Data", "Type", "Machine", "Entry", "Progs", "Notes", "State"})
		for _, r := range results {
			if r.File == nil {
				table.Append([]string{r.Path, humanize.Bytes(uint64(r.Size)), "", "", "", "", "", "", "", errorState(r.Err)})
				continue
			}
			f := r.File
			table.Append([]string{
				r.Path,
				humanize.Bytes(uint64(r.Size)),
				f.Ident.Class.String(),
				f.Ident.Data.String(),
				elf.Type(f.Header.Type).String(),
				elf.Machine(f.Header.Machine).String(),
				hex(f.Header.Entry),
				strconv.Itoa(len(f.Progs)),
				strconv.Itoa(len(f.Notes)),
				f.State.String(),
			})
		}
	}
	table.Render()
	return nil
}

func renderTree(w io.Writer, results []Result, view View) error {
	tree := treeprint.New()
	for _, r := range results {
		b := tree.AddBranch(fmt.Sprintf("%s (%s)", r.Path, humanize.Bytes(uint64(r.Size))))
		if r.Err != nil {
			b.AddNode("error: " + r.Err.Error())
		}
		f := r.File
		if f == nil {
			continue
		}
		if view == ViewAll || view == ViewHeader {
			h := b.AddBranch("header")
			h.AddNode(fmt.Sprintf("%s %s", f.Ident.Class, f.Ident.Data))
			h.AddNode(elf.OSABI(f.Ident.OSABI).String())
			h.AddNode(elf.Type(f.Header.Type).String())
			h.AddNode(elf.Machine(f.Header.Machine).String())
			h.AddNode("entry " + hex(f.Header.Entry))
		}
		if view == ViewAll || view == ViewPrograms {
			pb := b.AddBranch(fmt.Sprintf("programs (%d)", len(f.Progs)))
			for i, p := range f.Progs {
				pb.AddNode(fmt.Sprintf("%d %s %s offset %s filesz %s",
					i, elf.ProgType(p.Type), elf.ProgFlag(p.Flags), hex(p.Offset), humanize.Bytes(p.Filesz)))
			}
		}
		if view == ViewAll || view == ViewNotes {
			nb := b.AddBranch(fmt.Sprintf("notes (%d)", len(f.Notes)))
			for _, n := range f.Notes {
				nb.AddNode(fmt.Sprintf("%s type %s descsz %d at %s", n.Name, hex(uint64(n.Type)), n.DescSize, hex(uint64(n.Offset))))
			}
		}
		if (view == ViewAll || view == ViewBuildID) && !r.BuildID.Empty() {
			b.AddNode(fmt.Sprintf("build id %s %s", r.BuildID.Typ, r.BuildID.ID))
		}
		b.AddNode("state " + f.State.String())
	}
	_, err := io.WriteString(w, tree.String())
	return err
}

func parsed(results []Result) []Result {
	return lo.Filter(results, func(r Result, _ int) bool {
		return r.File != nil
	})
}

func errorState(err error) string {
	if elfpkg.KindOf(err) != 0 {
		return "failed"
	}
	return "unreadable"
}

func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
