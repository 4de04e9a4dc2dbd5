// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
)

// FSStore is a local-filesystem content store, fanning objects out
// under root/<first-2-hex-chars>/<remaining-hex-chars> the way
// modules/zeta/backend.Database shards its object directory, so no
// single directory accumulates every object in a large repository.
type FSStore struct {
	root string
	log  *logrus.Entry
}

// NewFSStore opens (creating if absent) a filesystem store rooted at
// root.
func NewFSStore(root string, log *logrus.Entry) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objstore: create root %s: %w", root, err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FSStore{root: root, log: log.WithField("component", "objstore.fs")}, nil
}

func (s *FSStore) path(h hash.Hash) string {
	hex := h.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// Put stores content under its hash. Writing is atomic (temp file +
// rename) so a crash mid-write never leaves a partial object visible,
// and a Put of content already on disk is a cheap stat-and-return.
func (s *FSStore) Put(ctx context.Context, kind object.Kind, content []byte) (hash.Hash, error) {
	h := hash.Of(content)
	dst := s.path(h)
	if _, err := os.Stat(dst); err == nil {
		return h, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return hash.Zero, fmt.Errorf("objstore: stat %s: %w", dst, err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return hash.Zero, fmt.Errorf("objstore: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return hash.Zero, fmt.Errorf("objstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hash.Zero, fmt.Errorf("objstore: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hash.Zero, fmt.Errorf("objstore: fsync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return hash.Zero, fmt.Errorf("objstore: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return hash.Zero, fmt.Errorf("objstore: rename into place: %w", err)
	}
	s.log.WithFields(logrus.Fields{"hash": h.String(), "kind": kind.String(), "bytes": len(content)}).Debug("object stored")
	return h, nil
}

func (s *FSStore) Get(ctx context.Context, h hash.Hash) ([]byte, error) {
	b, err := os.ReadFile(s.path(h))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("objstore: read %s: %w", h, err)
	}
	return b, nil
}

func (s *FSStore) Exists(ctx context.Context, h hash.Hash) (bool, error) {
	_, err := os.Stat(s.path(h))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("objstore: stat %s: %w", h, err)
	}
	return true, nil
}

var _ Store = (*FSStore)(nil)
