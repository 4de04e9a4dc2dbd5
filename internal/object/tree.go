// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/antgroup/lineage/internal/hash"
)

// Mode distinguishes a directory entry's two allowed kinds (spec.md
// §3: "mode is regular-file or tree").
type Mode uint8

const (
	ModeRegularFile Mode = 1
	ModeTree        Mode = 2
)

func (m Mode) String() string {
	if m == ModeTree {
		return "tree"
	}
	return "regular-file"
}

// Entry is one (name, mode, child-hash) triple in a Tree.
type Entry struct {
	Name string
	Mode Mode
	Hash hash.Hash
}

// Tree is a sorted directory listing. Sort order is plain
// lexicographic byte order over Name: unlike the teacher's git-style
// SubtreeOrder (which sorts directories as though suffixed with "/"),
// this system's trees are addressed by exact path, never diffed
// path-component-by-path-component against a working copy, so there is
// no need to bias directory ordering for merge-base compatibility.
type Tree struct {
	Entries []Entry

	byName map[string]*Entry
}

// NewTree builds a Tree from entries, sorting them by name.
func NewTree(entries []Entry) *Tree {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Tree{Entries: sorted}
}

// Entry looks up a direct child by name.
func (t *Tree) Entry(name string) (Entry, bool) {
	if t.byName == nil {
		t.byName = make(map[string]*Entry, len(t.Entries))
		for i := range t.Entries {
			t.byName[t.Entries[i].Name] = &t.Entries[i]
		}
	}
	e, ok := t.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// With returns a new Tree with entry upserted (replacing any existing
// entry of the same name); Without removes an entry.
func (t *Tree) With(entry Entry) *Tree {
	entries := make([]Entry, 0, len(t.Entries)+1)
	replaced := false
	for _, e := range t.Entries {
		if e.Name == entry.Name {
			entries = append(entries, entry)
			replaced = true
			continue
		}
		entries = append(entries, e)
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return NewTree(entries)
}

// Without returns a new Tree with the named entry removed.
func (t *Tree) Without(name string) *Tree {
	entries := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Name != name {
			entries = append(entries, e)
		}
	}
	return NewTree(entries)
}

// Equal reports whether two trees encode to the same hash without
// requiring the caller to encode either one.
func (t *Tree) Equal(other *Tree) bool {
	if len(t.Entries) != len(other.Entries) {
		return false
	}
	for i := range t.Entries {
		a, b := t.Entries[i], other.Entries[i]
		if a.Name != b.Name || a.Mode != b.Mode || a.Hash != b.Hash {
			return false
		}
	}
	return true
}

func (t *Tree) Encode(w io.Writer) error {
	if _, err := w.Write(treeMagic[:]); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if _, err := w.Write([]byte{byte(e.Mode)}); err != nil {
			return err
		}
		if err := writeString(w, e.Name); err != nil {
			return err
		}
		if _, err := w.Write(e.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) Decode(raw []byte) error {
	if len(raw) < 4 {
		return ErrUnsupportedObject
	}
	r := &byteReader{b: raw, pos: 4}
	var entries []Entry
	for !r.atEnd() {
		modeByte, err := r.readN(1)
		if err != nil {
			return err
		}
		mode := Mode(modeByte[0])
		if mode != ModeRegularFile && mode != ModeTree {
			return fmt.Errorf("object: invalid tree entry mode %d", mode)
		}
		name, err := r.readString()
		if err != nil {
			return err
		}
		hashBytes, err := r.readN(hash.Size)
		if err != nil {
			return err
		}
		var h hash.Hash
		copy(h[:], hashBytes)
		entries = append(entries, Entry{Name: name, Mode: mode, Hash: h})
	}
	t.Entries = entries
	return nil
}

// resolveTree resolves h through b, returning an error if b is nil.
func resolveTree(ctx context.Context, b Backend, h hash.Hash) (*Tree, error) {
	if b == nil {
		return nil, fmt.Errorf("object: no backend to resolve tree %s", h)
	}
	return b.Tree(ctx, h)
}
