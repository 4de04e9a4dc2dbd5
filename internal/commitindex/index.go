// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package commitindex implements the per-repository commit-id index
// (spec.md §4.B): a fixed-record file mapping revision number to
// commit hash in O(1). Rebuild reconstructs the file from the commit
// parent chain; Open neither checks the file nor calls Rebuild, and
// Head reports a file whose length is not a whole number of records
// as corrupt. The
// fixed-record/offset-addressed layout follows the commit-id index
// modules/zeta/backend uses to resolve short refs by ordinal in the
// teacher tree, trimmed to the single (revision, hash) record this
// system needs — no delta/pack-offset side table.
package commitindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
)

// recordSize is 4 bytes of big-endian revision plus a 20-byte hash.
const recordSize = 4 + hash.Size

// Index is a per-repository commit-id index backed by a single file.
type Index struct {
	path string
	file *os.File
	fsync bool
}

// Open opens (creating if absent) the index file at path. fsync
// controls whether safe-mode Put calls fsync after each append.
func Open(path string, fsync bool) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("commitindex: open %s: %w", path, err)
	}
	return &Index{path: path, file: f, fsync: fsync}, nil
}

func (ix *Index) Close() error { return ix.file.Close() }

// Head returns the current head revision, or 0 when the index is
// empty.
func (ix *Index) Head() (int64, error) {
	info, err := ix.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("commitindex: stat: %w", err)
	}
	if info.Size()%recordSize != 0 {
		return 0, fmt.Errorf("%w: index length %d is not a multiple of %d", dogmaerr.ErrCorrupt, info.Size(), recordSize)
	}
	return info.Size() / recordSize, nil
}

// Put appends a (revision, hash) record in safe mode: it verifies
// rev == head+1 (or rev == 1 for an empty index) before writing, and
// fsyncs afterward when the index was opened with fsync enabled.
func (ix *Index) Put(rev int64, h hash.Hash) error {
	head, err := ix.Head()
	if err != nil {
		return err
	}
	expected := head + 1
	if rev != expected {
		return fmt.Errorf("commitindex: refusing out-of-order write: rev=%d expected=%d", rev, expected)
	}
	if err := ix.writeRecord(rev, h); err != nil {
		return err
	}
	if ix.fsync {
		if err := ix.file.Sync(); err != nil {
			return fmt.Errorf("commitindex: fsync: %w", err)
		}
	}
	return nil
}

func (ix *Index) writeRecord(rev int64, h hash.Hash) error {
	var rec [recordSize]byte
	binary.BigEndian.PutUint32(rec[:4], uint32(rev))
	copy(rec[4:], h[:])
	offset := (rev - 1) * recordSize
	if _, err := ix.file.WriteAt(rec[:], offset); err != nil {
		return fmt.Errorf("commitindex: write record at offset %d: %w", offset, err)
	}
	return nil
}

// Get reads the hash stored for rev, failing revision-not-found if
// rev exceeds head and corrupt if the embedded revision in the
// on-disk record does not match rev.
func (ix *Index) Get(rev int64) (hash.Hash, error) {
	head, err := ix.Head()
	if err != nil {
		return hash.Zero, err
	}
	if rev < 1 || rev > head {
		return hash.Zero, dogmaerr.NewErrRevisionNotFound(rev, head)
	}
	var rec [recordSize]byte
	offset := (rev - 1) * recordSize
	if _, err := ix.file.ReadAt(rec[:], offset); err != nil {
		return hash.Zero, fmt.Errorf("commitindex: read record at offset %d: %w", offset, err)
	}
	storedRev := int64(binary.BigEndian.Uint32(rec[:4]))
	if storedRev != rev {
		return hash.Zero, fmt.Errorf("%w: record at revision %d embeds revision %d", dogmaerr.ErrCorrupt, rev, storedRev)
	}
	var h hash.Hash
	copy(h[:], rec[4:])
	return h, nil
}

// CommitGraph walks a commit's single-parent chain, as the repository
// engine's object store exposes it, for use by Rebuild.
type CommitGraph interface {
	// Parent returns the parent hash and embedded revision number of
	// the commit at h. ok is false when h is the zero hash (no
	// commit, i.e. the chain has been fully walked).
	Parent(h hash.Hash) (parent hash.Hash, revision int64, ok bool, err error)
}

// Rebuild truncates the index and reconstructs it by walking the
// commit parent chain from headCommit backward to revision 1,
// verifying that each commit's embedded revision is exactly one less
// than the commit in front of it. Every record is written before the
// final fsync, unlike Put's per-record safe-mode fsync.
func (ix *Index) Rebuild(graph CommitGraph, headCommit hash.Hash, headRevision int64) error {
	if err := ix.file.Truncate(0); err != nil {
		return fmt.Errorf("commitindex: truncate: %w", err)
	}

	type record struct {
		rev int64
		h   hash.Hash
	}
	var records []record

	cur := headCommit
	expected := headRevision
	for !cur.IsZero() {
		parent, rev, ok, err := graph.Parent(cur)
		if err != nil {
			return fmt.Errorf("commitindex: rebuild: %w", err)
		}
		if !ok {
			return errors.New("commitindex: rebuild: commit graph lookup failed")
		}
		if rev != expected {
			return fmt.Errorf("%w: commit at position expected revision %d, embeds %d", dogmaerr.ErrCorrupt, expected, rev)
		}
		records = append(records, record{rev: rev, h: cur})
		cur = parent
		expected--
	}
	if expected != 0 {
		return fmt.Errorf("%w: commit graph ended at revision %d instead of 0", dogmaerr.ErrCorrupt, expected)
	}

	// records were collected head-first; write oldest-first, head last.
	for i := len(records) - 1; i >= 0; i-- {
		if err := ix.writeRecord(records[i].rev, records[i].h); err != nil {
			return err
		}
	}
	return ix.file.Sync()
}
