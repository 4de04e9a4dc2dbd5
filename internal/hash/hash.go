// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package hash implements the 20-byte content hash used by the
// content-addressed object store (spec.md §4.A). The Hash type and its
// marshalling follow the shape of modules/plumbing.Hash in the teacher
// tree; the digest itself is SHA-1 rather than BLAKE3 because spec.md
// fixes the digest at 20 bytes, and no hash function in the example
// pack produces a 20-byte digest natively (see DESIGN.md).
package hash

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"hash"
	"sort"
)

const Size = 20

// Hash is the content-address of a blob, tree, or commit object.
type Hash [Size]byte

// Zero is the Hash with all bytes zero.
var Zero Hash

func (h Hash) IsZero() bool { return h == Zero }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(h[:], decoded)
	return nil
}

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(h[:], decoded)
	return nil
}

// New parses a hex-encoded 20-byte hash. Malformed input yields the
// zero hash, matching plumbing.NewHash's permissive behavior.
func New(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

// Valid reports whether s is a well-formed 40-character hex hash.
func Valid(s string) bool {
	if len(s) != Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Slice attaches sort.Interface to []Hash in increasing byte order.
type Slice []Hash

func (p Slice) Len() int           { return len(p) }
func (p Slice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p Slice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func Sort(hs []Hash) { sort.Sort(Slice(hs)) }

// Hasher incrementally hashes canonical object encodings.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher { return Hasher{Hash: sha1.New()} }

func (h Hasher) Sum() (out Hash) {
	copy(out[:], h.Hash.Sum(nil))
	return
}

// Of returns the content hash of b in one call.
func Of(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
}
