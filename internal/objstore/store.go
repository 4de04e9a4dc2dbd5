// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package objstore implements the content-addressed object store
// (spec.md §4.A): write-once, append-only storage keyed by an
// object's 20-byte content hash. The fan-out directory layout and
// put/get/exists contract follow modules/zeta/backend.Database in the
// teacher tree, trimmed to a local-filesystem store with an S3 store
// as an alternative backend (no local-then-remote layering), dropping the teacher's pack-file compaction,
// ristretto-backed metadata LRU, and zstd framing — this system's
// objects are small JSON/text blobs and trees, not VCS pack data.
package objstore

import (
	"context"
	"errors"

	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
)

// ErrNotFound is returned by Get when no object exists for a hash.
var ErrNotFound = errors.New("objstore: object not found")

// Store is the content-addressed object store contract from spec.md
// §4.A. Put is idempotent: inserting identical bytes always yields
// the same hash, and a second Put of content already present is a
// cheap no-op.
type Store interface {
	Put(ctx context.Context, kind object.Kind, content []byte) (hash.Hash, error)
	Get(ctx context.Context, h hash.Hash) ([]byte, error)
	Exists(ctx context.Context, h hash.Hash) (bool, error)
}

// PutEncoder hashes and stores e's canonical encoding in one step.
func PutEncoder(ctx context.Context, s Store, kind object.Kind, e object.Encoder) (hash.Hash, error) {
	h, err := object.Hash(e)
	if err != nil {
		return hash.Zero, err
	}
	ok, err := s.Exists(ctx, h)
	if err != nil {
		return hash.Zero, err
	}
	if ok {
		return h, nil
	}
	var buf writerBuffer
	if err := e.Encode(&buf); err != nil {
		return hash.Zero, err
	}
	got, err := s.Put(ctx, kind, buf.b)
	if err != nil {
		return hash.Zero, err
	}
	if got != h {
		return hash.Zero, errors.New("objstore: store-assigned hash does not match content hash")
	}
	return h, nil
}

// writerBuffer is a minimal io.Writer sink, avoiding a bytes.Buffer
// import purely for Write.
type writerBuffer struct{ b []byte }

func (w *writerBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// GetTree fetches and decodes a tree object.
func GetTree(ctx context.Context, s Store, h hash.Hash) (*object.Tree, error) {
	raw, err := s.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	decoded, err := object.Decode(raw)
	if err != nil {
		return nil, err
	}
	tree, ok := decoded.(*object.Tree)
	if !ok {
		return nil, errors.New("objstore: object is not a tree")
	}
	return tree, nil
}

// GetBlob fetches and decodes a blob object.
func GetBlob(ctx context.Context, s Store, h hash.Hash) (*object.Blob, error) {
	raw, err := s.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	decoded, err := object.Decode(raw)
	if err != nil {
		return nil, err
	}
	blob, ok := decoded.(*object.Blob)
	if !ok {
		return nil, errors.New("objstore: object is not a blob")
	}
	return blob, nil
}

// GetCommit fetches and decodes a commit object.
func GetCommit(ctx context.Context, s Store, h hash.Hash) (*object.Commit, error) {
	raw, err := s.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	decoded, err := object.Decode(raw)
	if err != nil {
		return nil, err
	}
	commit, ok := decoded.(*object.Commit)
	if !ok {
		return nil, errors.New("objstore: object is not a commit")
	}
	return commit, nil
}
