// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"io"
	"time"

	"github.com/antgroup/lineage/internal/hash"
)

// Markup identifies how Detail should be rendered.
type Markup string

const (
	MarkupPlaintext Markup = "PLAINTEXT"
	MarkupMarkdown  Markup = "MARKDOWN"
)

// Signature identifies who made a commit and when, following
// modules/zeta/object.Signature in the teacher tree but dropping its
// raw-bytes round-trip string format: this system never needs to
// preserve foreign signature encodings byte-for-byte.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is a single linear history step. Unlike the teacher's
// multi-parent Commit, spec.md §3 fixes this system to a single
// parent per commit (§4.C: "commit object with parent = current head
// commit") — there is no merge commit concept to support.
type Commit struct {
	Hash      hash.Hash
	Parent    hash.Hash // hash.Zero for the initial commit
	Tree      hash.Hash
	Revision  int64
	Author    Signature
	Committer Signature
	Summary   string
	Detail    string
	Markup    Markup
}

func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(commitMagic[:]); err != nil {
		return err
	}
	if _, err := w.Write(c.Parent[:]); err != nil {
		return err
	}
	if _, err := w.Write(c.Tree[:]); err != nil {
		return err
	}
	if err := writeInt64(w, c.Revision); err != nil {
		return err
	}
	if err := encodeSignature(w, c.Author); err != nil {
		return err
	}
	if err := encodeSignature(w, c.Committer); err != nil {
		return err
	}
	if err := writeString(w, c.Summary); err != nil {
		return err
	}
	if err := writeString(w, c.Detail); err != nil {
		return err
	}
	return writeString(w, string(c.Markup))
}

func encodeSignature(w io.Writer, s Signature) error {
	if err := writeString(w, s.Name); err != nil {
		return err
	}
	if err := writeString(w, s.Email); err != nil {
		return err
	}
	return writeInt64(w, s.When.UTC().UnixNano())
}

func decodeSignature(r *byteReader) (Signature, error) {
	name, err := r.readString()
	if err != nil {
		return Signature{}, err
	}
	email, err := r.readString()
	if err != nil {
		return Signature{}, err
	}
	nanos, err := r.readInt64()
	if err != nil {
		return Signature{}, err
	}
	return Signature{Name: name, Email: email, When: time.Unix(0, nanos).UTC()}, nil
}

func (c *Commit) Decode(raw []byte) error {
	if len(raw) < 4 {
		return ErrUnsupportedObject
	}
	r := &byteReader{b: raw, pos: 4}

	parentBytes, err := r.readN(hash.Size)
	if err != nil {
		return err
	}
	copy(c.Parent[:], parentBytes)

	treeBytes, err := r.readN(hash.Size)
	if err != nil {
		return err
	}
	copy(c.Tree[:], treeBytes)

	if c.Revision, err = r.readInt64(); err != nil {
		return err
	}
	if c.Author, err = decodeSignature(r); err != nil {
		return err
	}
	if c.Committer, err = decodeSignature(r); err != nil {
		return err
	}
	if c.Summary, err = r.readString(); err != nil {
		return err
	}
	if c.Detail, err = r.readString(); err != nil {
		return err
	}
	markup, err := r.readString()
	if err != nil {
		return err
	}
	c.Markup = Markup(markup)
	return nil
}

// IsRoot reports whether this is the first commit of a repository.
func (c *Commit) IsRoot() bool { return c.Parent.IsZero() }
