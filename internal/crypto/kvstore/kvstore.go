// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package kvstore is the embedded key-value engine backing the
// encryption substrate's storage layout (spec.md §4.G): one bbolt
// database, one bucket per column family, grounded on cuemby-warren's
// pkg/storage.BoltStore (bucket-per-entity-kind, create-if-absent on
// open, json-free raw []byte values since callers here already hand in
// encrypted or wrapped bytes).
package kvstore

import (
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Column families, matching spec.md §4.G's storage layout exactly.
var (
	BucketWDEK               = []byte("wdek")
	BucketEncryptionMetadata = []byte("encryption_metadata")
	BucketEncryptedObject    = []byte("encrypted_object")
	BucketEncryptedObjectID  = []byte("encrypted_object_id")
)

var allBuckets = [][]byte{
	BucketWDEK,
	BucketEncryptionMetadata,
	BucketEncryptedObject,
	BucketEncryptedObjectID,
}

// Store is a bbolt database opened with all four column families
// created. Every Put* call on top of it is fsynced by bbolt's own
// NoSync=false default, matching spec.md §4.G's "all store_* calls are
// sync-fsynced".
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a Store rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "encryption.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dbPath, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("kvstore: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get reads key from bucket, returning (nil, false) if absent.
func (s *Store) Get(bucket, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, value != nil, err
}

// Put writes key/value into bucket, fsyncing before returning.
func (s *Store) Put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

// PutIfAbsent writes key/value only if key is not already present,
// reporting exists=true without writing otherwise. Used by
// store_wdek's "fails entry-exists if a WDEK already exists for the
// target version" contract.
func (s *Store) PutIfAbsent(bucket, key, value []byte) (exists bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get(key) != nil {
			exists = true
			return nil
		}
		return b.Put(key, value)
	})
	return exists, err
}

// Delete removes key from bucket. Deleting an absent key is a no-op.
func (s *Store) Delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// BatchDelete removes every (bucket, key) pair in ops within a single
// transaction, the "batching writes... fsyncing per batch" shape
// spec.md §4.G's delete-repository-data asks for.
func (s *Store) BatchDelete(ops []DeleteOp) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, op := range ops {
			if err := tx.Bucket(op.Bucket).Delete(op.Key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteOp names one (bucket, key) pair to remove as part of a batch.
type DeleteOp struct {
	Bucket []byte
	Key    []byte
}

// ScanPrefix invokes fn for every key in bucket starting with prefix,
// in key order. fn's err, if any, aborts the scan and is returned.
func (s *Store) ScanPrefix(bucket, prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(append([]byte(nil), k...), append([]byte(nil), v...)); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
