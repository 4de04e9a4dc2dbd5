// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/antgroup/lineage/internal/crypto/kvstore"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
)

// refKind names which of the three ref/rev metadata shapes
// spec.md §4.G lists a logical key belongs to: HEAD, refs/<name>, or
// rev2sha/<u32>.
type refKind int

const (
	refKindHead refKind = iota
	refKindName
	refKindRev
)

// refID identifies one object-id row: a logical name plus which shape
// it takes, used to derive both the encryption_metadata key and the
// plaintext sealed into the encrypted_object_id storage key.
type refID struct {
	kind refKind
	name string // refs/<name>'s suffix
	rev  uint32 // rev2sha/<u32>'s number
}

func headRef() refID            { return refID{kind: refKindHead} }
func nameRef(name string) refID { return refID{kind: refKindName, name: name} }
func revRef(rev uint32) refID   { return refID{kind: refKindRev, rev: rev} }

func (r refID) metadataKey(project, repo string) []byte {
	switch r.kind {
	case refKindHead:
		return metadataHeadKey(project, repo)
	case refKindName:
		return metadataRefKey(project, repo, r.name)
	default:
		return metadataRevKey(project, repo, r.rev)
	}
}

// plaintext returns the bytes sealed into the encrypted_object_id
// storage key and whose decryption recovers the stored hash.
func (r refID) plaintext() []byte {
	switch r.kind {
	case refKindHead:
		return []byte("HEAD")
	case refKindName:
		return []byte("refs/" + r.name)
	default:
		return []byte(fmt.Sprintf("rev2sha/%d", r.rev))
	}
}

// PutObjectID records that the logical ref/rev identified by id
// currently resolves to target, sealing the mapping under the
// repository's current DEK.
func (s *Substrate) PutObjectID(ctx context.Context, project, repo string, id refID, target hash.Hash) error {
	version, err := s.currentDEKVersion(project, repo)
	if err != nil {
		return err
	}
	repoDEK, err := s.GetDEK(ctx, project, repo, version)
	if err != nil {
		return err
	}
	nonce, err := freshNonce()
	if err != nil {
		return err
	}

	sealedValue, err := seal(repoDEK, nonce, target[:])
	if err != nil {
		return err
	}
	storageKey, err := seal(repoDEK, nonce, id.plaintext())
	if err != nil {
		return err
	}

	meta := encodeRefMetadata(refMetadata{Version: version, Nonce: nonce})
	if err := s.kv.Put(kvstore.BucketEncryptionMetadata, id.metadataKey(project, repo), meta); err != nil {
		return fmt.Errorf("crypto: store ref metadata: %w", err)
	}
	if err := s.kv.Put(kvstore.BucketEncryptedObjectID, storageKey, sealedValue); err != nil {
		return fmt.Errorf("crypto: store encrypted object id: %w", err)
	}
	return nil
}

// GetObjectID resolves id back to the hash PutObjectID last stored for
// it.
func (s *Substrate) GetObjectID(ctx context.Context, project, repo string, id refID) (hash.Hash, error) {
	meta, err := s.readRefMetadata(project, repo, id)
	if err != nil {
		return hash.Zero, err
	}
	repoDEK, err := s.GetDEK(ctx, project, repo, meta.Version)
	if err != nil {
		return hash.Zero, err
	}
	storageKey, err := seal(repoDEK, meta.Nonce, id.plaintext())
	if err != nil {
		return hash.Zero, err
	}
	sealedValue, ok, err := s.kv.Get(kvstore.BucketEncryptedObjectID, storageKey)
	if err != nil {
		return hash.Zero, fmt.Errorf("crypto: read encrypted object id: %w", err)
	}
	if !ok {
		return hash.Zero, dogmaerr.ErrEntryAbsent
	}
	plain, err := open(repoDEK, meta.Nonce, sealedValue)
	if err != nil {
		return hash.Zero, err
	}
	var h hash.Hash
	copy(h[:], plain)
	return h, nil
}

// DeleteObjectID removes both the metadata and storage entries for id.
func (s *Substrate) DeleteObjectID(ctx context.Context, project, repo string, id refID) error {
	meta, err := s.readRefMetadata(project, repo, id)
	if err != nil {
		if errors.Is(err, dogmaerr.ErrEntryAbsent) {
			return nil
		}
		return err
	}
	repoDEK, err := s.GetDEK(ctx, project, repo, meta.Version)
	if err != nil {
		return err
	}
	storageKey, err := seal(repoDEK, meta.Nonce, id.plaintext())
	if err != nil {
		return err
	}
	if err := s.kv.Delete(kvstore.BucketEncryptedObjectID, storageKey); err != nil {
		return fmt.Errorf("crypto: delete encrypted object id: %w", err)
	}
	return s.kv.Delete(kvstore.BucketEncryptionMetadata, id.metadataKey(project, repo))
}

func (s *Substrate) readRefMetadata(project, repo string, id refID) (refMetadata, error) {
	raw, ok, err := s.kv.Get(kvstore.BucketEncryptionMetadata, id.metadataKey(project, repo))
	if err != nil {
		return refMetadata{}, fmt.Errorf("crypto: read ref metadata: %w", err)
	}
	if !ok {
		return refMetadata{}, dogmaerr.ErrEntryAbsent
	}
	return decodeRefMetadata(raw)
}
