// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/antgroup/lineage/internal/crypto/kvstore"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
)

// PutObject seals content under a fresh per-object DEK (itself wrapped
// by the repository's current DEK) and stores it in the
// encrypted_object column family, keyed by
// encrypt(object-dek, nonce, object-hash) as spec.md §4.G's storage
// layout describes. h is the content's plaintext hash, used both as
// the encryption_metadata row name and as the associated plaintext
// sealed into the storage key.
func (s *Substrate) PutObject(ctx context.Context, project, repo string, h hash.Hash, content []byte) error {
	version, err := s.currentDEKVersion(project, repo)
	if err != nil {
		return err
	}
	repoDEK, err := s.GetDEK(ctx, project, repo, version)
	if err != nil {
		return err
	}

	objectDEK := make([]byte, dekKeySize)
	if _, err := io.ReadFull(rand.Reader, objectDEK); err != nil {
		return fmt.Errorf("crypto: generate object dek: %w", err)
	}
	nonce, err := freshNonce()
	if err != nil {
		return err
	}

	wrappedObjectDEK, err := seal(repoDEK, nonce, objectDEK)
	if err != nil {
		return err
	}
	sealedContent, err := seal(objectDEK, nonce, content)
	if err != nil {
		return err
	}
	storageKey, err := seal(objectDEK, nonce, h[:])
	if err != nil {
		return err
	}

	meta := encodeObjectMetadata(objectMetadata{Version: version, Nonce: nonce, WrappedObjectDEK: wrappedObjectDEK})
	if err := s.kv.Put(kvstore.BucketEncryptionMetadata, metadataObjectKey(project, repo, h.String()), meta); err != nil {
		return fmt.Errorf("crypto: store object metadata: %w", err)
	}
	if err := s.kv.Put(kvstore.BucketEncryptedObject, storageKey, sealedContent); err != nil {
		return fmt.Errorf("crypto: store encrypted object: %w", err)
	}
	return nil
}

// GetObject reverses PutObject.
func (s *Substrate) GetObject(ctx context.Context, project, repo string, h hash.Hash) ([]byte, error) {
	meta, err := s.readObjectMetadata(project, repo, h.String())
	if err != nil {
		return nil, err
	}

	repoDEK, err := s.GetDEK(ctx, project, repo, meta.Version)
	if err != nil {
		return nil, err
	}
	objectDEK, err := open(repoDEK, meta.Nonce, meta.WrappedObjectDEK)
	if err != nil {
		return nil, fmt.Errorf("crypto: unwrap object dek: %w", err)
	}
	storageKey, err := seal(objectDEK, meta.Nonce, h[:])
	if err != nil {
		return nil, err
	}
	sealedContent, ok, err := s.kv.Get(kvstore.BucketEncryptedObject, storageKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: read encrypted object: %w", err)
	}
	if !ok {
		return nil, dogmaerr.ErrEntryAbsent
	}
	return open(objectDEK, meta.Nonce, sealedContent)
}

// ContainsMetadata reports whether h has an encryption_metadata entry,
// without touching KMS or decrypting anything — the cheap existence
// check spec.md §4.G's contract lists separately from get_object.
func (s *Substrate) ContainsMetadata(project, repo string, h hash.Hash) (bool, error) {
	_, ok, err := s.kv.Get(kvstore.BucketEncryptionMetadata, metadataObjectKey(project, repo, h.String()))
	return ok, err
}

func (s *Substrate) readObjectMetadata(project, repo, hexHash string) (objectMetadata, error) {
	raw, ok, err := s.kv.Get(kvstore.BucketEncryptionMetadata, metadataObjectKey(project, repo, hexHash))
	if err != nil {
		return objectMetadata{}, fmt.Errorf("crypto: read object metadata: %w", err)
	}
	if !ok {
		return objectMetadata{}, dogmaerr.ErrEntryAbsent
	}
	return decodeObjectMetadata(raw)
}
