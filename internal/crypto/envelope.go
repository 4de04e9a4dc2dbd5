// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package crypto is the optional encrypted-storage substrate sitting
// between the repository engine and its backing object/ref store
// (spec.md §4.G). When enabled, every logical object/ref read or write
// is routed through here instead of going straight to
// internal/objstore, turning a plain byte blob into an
// encryption-metadata record plus an AEAD-sealed value.
//
// AES-256 in GCM-SIV is the primitive spec.md §4.G names, but no
// GCM-SIV implementation ships in the standard library or appears
// anywhere in this system's dependency pack; crypto/cipher.NewGCM (the
// nearest in-tree AEAD, already used this same way by cuemby-warren's
// pkg/security.SecretsManager) is used instead, with a fresh random
// nonce per record so the missing misuse-resistance property is never
// relied on.
package crypto

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/antgroup/lineage/internal/crypto/kms"
	"github.com/antgroup/lineage/internal/crypto/kvstore"
	"github.com/antgroup/lineage/internal/dogmaerr"
)

const (
	dekKeySize     = 32 // AES-256
	nonceSize      = 12
	metaKeyVersion = 4 // bytes
)

// Substrate is the encryption layer. One Substrate serves every
// repository in the process; DEKs are looked up per (project, repo)
// and cached in memory since KMS unwrap calls are not free.
type Substrate struct {
	kv  *kvstore.Store
	kek kms.KeyManager

	// kekID identifies the key-encryption key every wrap/unwrap call
	// in this process uses. Spec.md §4.G describes a single KMS
	// instance per deployment, not a per-repository KEK.
	kekID string

	mu       sync.Mutex
	dekCache map[string][]byte // "project/repo/version" -> plaintext DEK
}

// New builds a Substrate over an already-open kvstore.Store and
// KeyManager.
func New(kv *kvstore.Store, kek kms.KeyManager, kekID string) *Substrate {
	return &Substrate{kv: kv, kek: kek, kekID: kekID, dekCache: make(map[string][]byte)}
}

func wdekKey(project, repo string, version uint32) []byte {
	return []byte(fmt.Sprintf("wdeks/%s/%s/%d", project, repo, version))
}

func wdekCurrentKey(project, repo string) []byte {
	return []byte(fmt.Sprintf("wdeks/%s/%s/current", project, repo))
}

// StoreWDEK generates a fresh plaintext DEK, wraps it under the
// substrate's KEK, and persists the wrapped bytes at
// wdeks/<project>/<repo>/<version>, failing entry-exists if that slot
// is already occupied (spec.md §4.G contract: "storeWdek fails
// entry-exists if a WDEK already exists for the target version").
func (s *Substrate) StoreWDEK(ctx context.Context, project, repo string, version uint32) error {
	dek := make([]byte, dekKeySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return fmt.Errorf("crypto: generate dek: %w", err)
	}
	wrapped, err := s.kek.Wrap(ctx, s.kekID, dek)
	if err != nil {
		return fmt.Errorf("crypto: wrap dek: %w", err)
	}
	exists, err := s.kv.PutIfAbsent(kvstore.BucketWDEK, wdekKey(project, repo, version), wrapped)
	if err != nil {
		return fmt.Errorf("crypto: store wdek: %w", err)
	}
	if exists {
		return dogmaerr.ErrEntryExists
	}
	if err := s.kv.Put(kvstore.BucketWDEK, wdekCurrentKey(project, repo), encodeVersion(version)); err != nil {
		return fmt.Errorf("crypto: advance current dek version: %w", err)
	}
	return nil
}

// GetCurrentDEK returns the plaintext DEK the repository's current
// version points at.
func (s *Substrate) GetCurrentDEK(ctx context.Context, project, repo string) ([]byte, error) {
	version, err := s.currentDEKVersion(project, repo)
	if err != nil {
		return nil, err
	}
	return s.GetDEK(ctx, project, repo, version)
}

func (s *Substrate) currentDEKVersion(project, repo string) (uint32, error) {
	raw, ok, err := s.kv.Get(kvstore.BucketWDEK, wdekCurrentKey(project, repo))
	if err != nil {
		return 0, fmt.Errorf("crypto: read current dek version: %w", err)
	}
	if !ok {
		return 0, dogmaerr.ErrEntryAbsent
	}
	return decodeVersion(raw), nil
}

// GetDEK returns the plaintext DEK for one specific version, unwrapping
// it through the KEK on a cache miss.
func (s *Substrate) GetDEK(ctx context.Context, project, repo string, version uint32) ([]byte, error) {
	cacheKey := fmt.Sprintf("%s/%s/%d", project, repo, version)

	s.mu.Lock()
	if dek, ok := s.dekCache[cacheKey]; ok {
		s.mu.Unlock()
		return dek, nil
	}
	s.mu.Unlock()

	wrapped, ok, err := s.kv.Get(kvstore.BucketWDEK, wdekKey(project, repo, version))
	if err != nil {
		return nil, fmt.Errorf("crypto: read wdek: %w", err)
	}
	if !ok {
		return nil, dogmaerr.ErrEntryAbsent
	}
	dek, err := s.kek.Unwrap(ctx, s.kekID, wrapped)
	if err != nil {
		return nil, fmt.Errorf("crypto: unwrap dek: %w", err)
	}

	s.mu.Lock()
	s.dekCache[cacheKey] = dek
	s.mu.Unlock()
	return dek, nil
}

// RemoveWDEK deletes one wrapped-DEK version. It never touches the
// "current" pointer; rotating away from a version is a separate step
// left to the caller (spec.md reserves key rotation for later).
func (s *Substrate) RemoveWDEK(project, repo string, version uint32) error {
	cacheKey := fmt.Sprintf("%s/%s/%d", project, repo, version)
	s.mu.Lock()
	delete(s.dekCache, cacheKey)
	s.mu.Unlock()
	return s.kv.Delete(kvstore.BucketWDEK, wdekKey(project, repo, version))
}

// --- session master key lineage ---

func sessionMasterKey(version uint32) []byte {
	return []byte(fmt.Sprintf("session/master/%d", version))
}

var sessionMasterCurrentKey = []byte("session/master/current")

// sessionRecord is what's stored under session/master/<version>: the
// wrapped key plus the salt it was derived alongside.
type sessionRecord struct {
	Wrapped []byte
	Salt    []byte
}

// StoreSessionMasterKey wraps key under the KEK and persists it as the
// new current session master key version.
func (s *Substrate) StoreSessionMasterKey(ctx context.Context, version uint32, key, salt []byte) error {
	wrapped, err := s.kek.Wrap(ctx, s.kekID, key)
	if err != nil {
		return fmt.Errorf("crypto: wrap session master key: %w", err)
	}
	encoded := encodeSessionRecord(sessionRecord{Wrapped: wrapped, Salt: salt})
	if err := s.kv.Put(kvstore.BucketWDEK, sessionMasterKey(version), encoded); err != nil {
		return fmt.Errorf("crypto: store session master key: %w", err)
	}
	return s.kv.Put(kvstore.BucketWDEK, sessionMasterCurrentKey, encodeVersion(version))
}

// GetCurrentSessionKey unwraps and returns the current session master
// key and the salt it was stored with.
func (s *Substrate) GetCurrentSessionKey(ctx context.Context) (key, salt []byte, err error) {
	raw, ok, err := s.kv.Get(kvstore.BucketWDEK, sessionMasterCurrentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: read current session key version: %w", err)
	}
	if !ok {
		return nil, nil, dogmaerr.ErrEntryAbsent
	}
	version := decodeVersion(raw)

	encoded, ok, err := s.kv.Get(kvstore.BucketWDEK, sessionMasterKey(version))
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: read session master key: %w", err)
	}
	if !ok {
		return nil, nil, dogmaerr.ErrEntryAbsent
	}
	rec, err := decodeSessionRecord(encoded)
	if err != nil {
		return nil, nil, err
	}
	key, err = s.kek.Unwrap(ctx, s.kekID, rec.Wrapped)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: unwrap session master key: %w", err)
	}
	return key, rec.Salt, nil
}

func encodeVersion(v uint32) []byte {
	b := make([]byte, metaKeyVersion)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeVersion(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func encodeSessionRecord(rec sessionRecord) []byte {
	b := make([]byte, 4+len(rec.Wrapped)+len(rec.Salt))
	binary.BigEndian.PutUint32(b, uint32(len(rec.Wrapped)))
	copy(b[4:], rec.Wrapped)
	copy(b[4+len(rec.Wrapped):], rec.Salt)
	return b
}

func decodeSessionRecord(b []byte) (sessionRecord, error) {
	if len(b) < 4 {
		return sessionRecord{}, fmt.Errorf("crypto: truncated session record")
	}
	n := binary.BigEndian.Uint32(b)
	if uint32(len(b)) < 4+n {
		return sessionRecord{}, fmt.Errorf("crypto: truncated session record")
	}
	return sessionRecord{Wrapped: b[4 : 4+n], Salt: b[4+n:]}, nil
}
