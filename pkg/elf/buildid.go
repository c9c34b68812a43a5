package elf

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

type BuildID struct {
	ID  string `json:"id" yaml:"id"`
	Typ string `json:"type" yaml:"type"`
}

func GNUBuildID(s string) BuildID {
	return BuildID{ID: s, Typ: "gnu"}
}

func GoBuildID(s string) BuildID {
	return BuildID{ID: s, Typ: "go"}
}

func (b *BuildID) Empty() bool {
	return b.ID == "" || b.Typ == ""
}

func (b *BuildID) GNU() bool {
	return b.Typ == "gnu"
}

var ErrNoBuildID = errors.New("build ID note not found")

var goBuildIDSep = []byte("/")

// BuildID returns the GNU build ID of the file, falling back to the Go build
// ID. Only notes from note segments are considered.
func (f *File) BuildID() (BuildID, error) {
	id, err := f.GNUBuildID()
	if err != nil && !errors.Is(err, ErrNoBuildID) {
		return BuildID{}, err
	}
	if !id.Empty() {
		return id, nil
	}
	id, err = f.GoBuildID()
	if err != nil && !errors.Is(err, ErrNoBuildID) {
		return BuildID{}, err
	}
	if !id.Empty() {
		return id, nil
	}
	return BuildID{}, ErrNoBuildID
}

func (f *File) GNUBuildID() (BuildID, error) {
	n := f.findNote("GNU", ntGNUBuildID)
	if n == nil {
		return BuildID{}, ErrNoBuildID
	}
	// 8 is xxhash, for example in Container-Optimized OS
	if len(n.Desc) != 20 && len(n.Desc) != 8 {
		return BuildID{}, fmt.Errorf("GNU build ID note at 0x%x has wrong size %d", n.Offset, len(n.Desc))
	}
	return GNUBuildID(hex.EncodeToString(n.Desc)), nil
}

func (f *File) GoBuildID() (BuildID, error) {
	n := f.findNote("Go", ntGoBuildID)
	if n == nil {
		return BuildID{}, ErrNoBuildID
	}
	data := bytes.TrimRight(n.Desc, "\x00")
	if len(data) < 40 || bytes.Count(data, goBuildIDSep) < 2 {
		return BuildID{}, fmt.Errorf("wrong Go build ID note at 0x%x", n.Offset)
	}
	return GoBuildID(string(data)), nil
}

func (f *File) findNote(name string, typ uint32) *Note {
	for i := range f.Notes {
		n := &f.Notes[i]
		if n.Type == typ && n.Name == name {
			return n
		}
	}
	return nil
}
