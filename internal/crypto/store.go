// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
)

// EncryptedStore adapts a Substrate to objstore.Store for one
// (project, repository) pair, so internal/repo's engine can write and
// read through it exactly as it would a plain internal/objstore.Store
// — the engine never needs to know encryption is enabled.
type EncryptedStore struct {
	sub     *Substrate
	project string
	repo    string
}

// NewEncryptedStore wraps sub for one repository. A WDEK must already
// exist for (project, repo) (StoreWDEK, normally called once at
// repository creation) before this store is used.
func NewEncryptedStore(sub *Substrate, project, repo string) *EncryptedStore {
	return &EncryptedStore{sub: sub, project: project, repo: repo}
}

func (s *EncryptedStore) Put(ctx context.Context, kind object.Kind, content []byte) (hash.Hash, error) {
	h := hash.Of(content)
	exists, err := s.sub.ContainsMetadata(s.project, s.repo, h)
	if err != nil {
		return hash.Zero, fmt.Errorf("crypto: check existing object: %w", err)
	}
	if exists {
		return h, nil
	}
	if err := s.sub.PutObject(ctx, s.project, s.repo, h, content); err != nil {
		return hash.Zero, err
	}
	return h, nil
}

func (s *EncryptedStore) Get(ctx context.Context, h hash.Hash) ([]byte, error) {
	content, err := s.sub.GetObject(ctx, s.project, s.repo, h)
	if errors.Is(err, dogmaerr.ErrEntryAbsent) {
		return nil, objstore.ErrNotFound
	}
	return content, err
}

func (s *EncryptedStore) Exists(ctx context.Context, h hash.Hash) (bool, error) {
	return s.sub.ContainsMetadata(s.project, s.repo, h)
}

var _ objstore.Store = (*EncryptedStore)(nil)
