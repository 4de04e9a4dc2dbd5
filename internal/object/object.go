// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object defines the three object kinds of the content-addressed
// store (spec.md §4.A): blob, tree, and commit. Each kind's canonical
// byte encoding is what the store hashes to produce the object's
// identity. The magic-prefixed binary encoding and the Backend
// indirection for resolving a hash to a typed object follow
// modules/zeta/object in the teacher tree, trimmed to the three kinds
// spec.md names — no tags, fragments, zstd framing, or inline-blob
// payloads, none of which this system's tree format supports.
package object

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/antgroup/lineage/internal/hash"
)

// ErrUnsupportedObject is returned by Decode when a byte stream does
// not begin with a recognized magic.
var ErrUnsupportedObject = errors.New("object: unsupported object encoding")

// Kind tags which of the three object types an encoded object is.
type Kind int8

const (
	InvalidKind Kind = 0
	BlobKind    Kind = 1
	TreeKind    Kind = 2
	CommitKind  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case BlobKind:
		return "blob"
	case TreeKind:
		return "tree"
	case CommitKind:
		return "commit"
	default:
		return "invalid"
	}
}

var (
	blobMagic   = [4]byte{'D', 'G', 'B', '1'}
	treeMagic   = [4]byte{'D', 'G', 'T', '1'}
	commitMagic = [4]byte{'D', 'G', 'C', '1'}
)

// Backend resolves an object hash to its decoded, typed form, letting
// a Tree or Commit lazily walk into the objects it references without
// the object package importing the store package directly.
type Backend interface {
	Blob(ctx context.Context, h hash.Hash) (*Blob, error)
	Tree(ctx context.Context, h hash.Hash) (*Tree, error)
	Commit(ctx context.Context, h hash.Hash) (*Commit, error)
}

// Encoder produces an object's canonical byte encoding.
type Encoder interface {
	Encode(w io.Writer) error
}

// Hash computes the content hash of an encodable object, matching
// what the object store will assign it on put.
func Hash(e Encoder) (hash.Hash, error) {
	h := hash.NewHasher()
	if err := e.Encode(h); err != nil {
		return hash.Zero, err
	}
	return h.Sum(), nil
}

// Decode inspects the magic prefix of b and decodes it into the
// matching typed object.
func Decode(b []byte) (any, error) {
	if len(b) < 4 {
		return nil, ErrUnsupportedObject
	}
	var magic [4]byte
	copy(magic[:], b[:4])
	switch magic {
	case blobMagic:
		blob := &Blob{}
		if err := blob.Decode(b); err != nil {
			return nil, err
		}
		return blob, nil
	case treeMagic:
		tree := &Tree{}
		if err := tree.Decode(b); err != nil {
			return nil, err
		}
		return tree, nil
	case commitMagic:
		commit := &Commit{}
		if err := commit.Decode(b); err != nil {
			return nil, err
		}
		return commit, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized magic %q", ErrUnsupportedObject, magic[:])
	}
}

// KindOf inspects the magic prefix without fully decoding the object.
func KindOf(b []byte) Kind {
	if len(b) < 4 {
		return InvalidKind
	}
	var magic [4]byte
	copy(magic[:], b[:4])
	switch magic {
	case blobMagic:
		return BlobKind
	case treeMagic:
		return TreeKind
	case commitMagic:
		return CommitKind
	default:
		return InvalidKind
	}
}
