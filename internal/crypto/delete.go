// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/antgroup/lineage/internal/crypto/kvstore"
)

const deleteBatchSize = 1000

// DeleteRepositoryData implements spec.md §4.G's delete-repository-data:
// every metadata entry under project/repo/ is removed along with its
// corresponding encrypted value, batched and fsynced per batch, and
// the repository's WDEK entries are removed last so a crash mid-purge
// never leaves live data behind with no key left to decrypt it.
func (s *Substrate) DeleteRepositoryData(project, repo string) error {
	prefix := metadataPrefix(project, repo)

	var batch []kvstore.DeleteOp
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.kv.BatchDelete(batch); err != nil {
			return fmt.Errorf("crypto: batch delete repository data: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	err := s.kv.ScanPrefix(kvstore.BucketEncryptionMetadata, prefix, func(key, value []byte) error {
		suffix := strings.TrimPrefix(string(key), string(prefix))

		storageKey, bucket, err := s.deriveStorageKey(project, repo, suffix, value)
		if err != nil {
			return err
		}

		batch = append(batch, kvstore.DeleteOp{Bucket: kvstore.BucketEncryptionMetadata, Key: append([]byte(nil), key...)})
		batch = append(batch, kvstore.DeleteOp{Bucket: bucket, Key: storageKey})
		if len(batch) >= deleteBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	return s.deleteAllWDEKs(project, repo)
}

// deriveStorageKey recomputes the encrypted_object or
// encrypted_object_id key a metadata row points at, since this column
// family stores only the sealed bytes, not a plaintext back-reference.
func (s *Substrate) deriveStorageKey(project, repo, suffix string, metaValue []byte) (storageKey []byte, bucket []byte, err error) {
	if hexHash, ok := strings.CutPrefix(suffix, "objs/"); ok {
		meta, err := decodeObjectMetadata(metaValue)
		if err != nil {
			return nil, nil, err
		}
		repoDEK, err := s.GetDEK(context.Background(), project, repo, meta.Version)
		if err != nil {
			return nil, nil, err
		}
		objectDEK, err := open(repoDEK, meta.Nonce, meta.WrappedObjectDEK)
		if err != nil {
			return nil, nil, err
		}
		hashBytes, err := hex.DecodeString(hexHash)
		if err != nil {
			return nil, nil, fmt.Errorf("crypto: malformed object metadata key %q: %w", suffix, err)
		}
		key, err := seal(objectDEK, meta.Nonce, hashBytes)
		if err != nil {
			return nil, nil, err
		}
		return key, kvstore.BucketEncryptedObject, nil
	}

	id, err := parseRefSuffix(suffix)
	if err != nil {
		return nil, nil, err
	}
	meta, err := decodeRefMetadata(metaValue)
	if err != nil {
		return nil, nil, err
	}
	repoDEK, err := s.GetDEK(context.Background(), project, repo, meta.Version)
	if err != nil {
		return nil, nil, err
	}
	key, err := seal(repoDEK, meta.Nonce, id.plaintext())
	if err != nil {
		return nil, nil, err
	}
	return key, kvstore.BucketEncryptedObjectID, nil
}

func parseRefSuffix(suffix string) (refID, error) {
	switch {
	case suffix == "HEAD":
		return headRef(), nil
	case strings.HasPrefix(suffix, "refs/"):
		return nameRef(strings.TrimPrefix(suffix, "refs/")), nil
	case strings.HasPrefix(suffix, "rev2sha/"):
		var rev uint32
		if _, err := fmt.Sscanf(strings.TrimPrefix(suffix, "rev2sha/"), "%d", &rev); err != nil {
			return refID{}, fmt.Errorf("crypto: malformed rev2sha metadata key %q: %w", suffix, err)
		}
		return revRef(rev), nil
	default:
		return refID{}, fmt.Errorf("crypto: unrecognized metadata key suffix %q", suffix)
	}
}

func (s *Substrate) deleteAllWDEKs(project, repo string) error {
	prefix := []byte(fmt.Sprintf("wdeks/%s/%s/", project, repo))
	var keys [][]byte
	err := s.kv.ScanPrefix(kvstore.BucketWDEK, prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("crypto: scan wdeks for deletion: %w", err)
	}
	var batch []kvstore.DeleteOp
	for _, k := range keys {
		batch = append(batch, kvstore.DeleteOp{Bucket: kvstore.BucketWDEK, Key: k})
	}
	if len(batch) == 0 {
		return nil
	}
	if err := s.kv.BatchDelete(batch); err != nil {
		return fmt.Errorf("crypto: delete wdeks: %w", err)
	}

	// Evict any in-memory DEKs for this repository so a purge is
	// visible immediately, not just on the next process restart.
	s.mu.Lock()
	for cacheKey := range s.dekCache {
		if strings.HasPrefix(cacheKey, project+"/"+repo+"/") {
			delete(s.dekCache, cacheKey)
		}
	}
	s.mu.Unlock()
	return nil
}
