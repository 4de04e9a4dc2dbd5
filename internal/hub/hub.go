// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package hub is the repository directory and command dispatcher: the
// glue between internal/catalog (project/repository metadata),
// internal/repo (per-repository commit history), internal/cache
// (query/merge memoization), internal/watch (long-poll wakeups), and
// internal/cluster (the replicated command log). It implements
// cluster.Executor, so every mutating command the external interfaces
// of spec.md §6 name passes through Hub.Execute on its way into the
// replicated log; reads bypass the log entirely and go straight to
// the addressed repository's engine, matching spec.md §5's "reads are
// non-blocking."
//
// Grounded on pkg/serve/repo.repositories/Repositories: a directory
// that lazily opens per-repository handles over a shared root
// directory and a shared metadata database, generalized here from a
// single odb.ODB per repository to a (repo.Engine, watch.Multiplexer)
// pair per repository, and from git-style content addressing to this
// system's hash/object-store pair.
package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/cache"
	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/commitindex"
	"github.com/antgroup/lineage/internal/crypto"
	"github.com/antgroup/lineage/internal/objstore"
	"github.com/antgroup/lineage/internal/objstore/s3store"
	"github.com/antgroup/lineage/internal/repo"
	"github.com/antgroup/lineage/internal/watch"
)

// reservedRepositories may never be force-pushed around read-only mode
// with arbitrary content (spec.md §7's invalid-push, §2's "meta/dogma"
// style reserved namespace for internal bookkeeping).
var reservedRepositories = map[string]bool{
	"meta/dogma": true,
}

// repoHandle bundles everything Hub keeps open per repository.
type repoHandle struct {
	engine *repo.Engine
	mux    *watch.Multiplexer
	store  objstore.Store
	index  *commitindex.Index
}

// Hub is the process-wide directory of open repositories.
type Hub struct {
	dataDir  string
	catalog  catalog.DB
	cache    *cache.Cache
	crypto   *crypto.Substrate // nil unless encryption-at-rest is configured
	s3       s3store.Client    // nil unless the S3 object store is configured
	s3Bucket string
	log      *logrus.Entry

	maxPushPayloadBytes int64

	mu       sync.Mutex
	repos    map[string]*repoHandle
	readOnly bool
	sessions map[string]string // session ID -> subject, replicated alongside everything else
}

// defaultMaxPushPayloadBytes is the commit payload size cap a Hub
// built with New starts with, matching internal/config.
// DefaultMaxPushPayloadBytes (spec.md Open Questions: "a configurable
// limit with a default in the single-megabyte range").
const defaultMaxPushPayloadBytes = 1 << 20

// New builds a Hub rooted at dataDir, backed by cat for project/
// repository metadata and c for query memoization.
func New(dataDir string, cat catalog.DB, c *cache.Cache, log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		dataDir:             dataDir,
		catalog:             cat,
		cache:               c,
		log:                 log.WithField("component", "hub"),
		repos:               make(map[string]*repoHandle),
		sessions:            make(map[string]string),
		maxPushPayloadBytes: defaultMaxPushPayloadBytes,
	}
}

// SetMaxPushPayloadBytes overrides the commit payload size cap every
// subsequent push is checked against (spec.md §7's too-large-request
// kind).
func (h *Hub) SetMaxPushPayloadBytes(n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxPushPayloadBytes = n
}

func (h *Hub) maxPushPayload() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxPushPayloadBytes
}

// SetCrypto enables encryption-at-rest for every repository opened
// after this call (spec.md §4.G is an optional substrate; a Hub built
// without ever calling this stores objects in plaintext, unchanged
// from the teacher's own on-disk layout).
func (h *Hub) SetCrypto(sub *crypto.Substrate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.crypto = sub
}

// SetS3 routes every repository opened after this call to an S3-backed
// object store instead of the local filesystem, for deployments that
// prefer a durable, shared store over per-replica disk (spec.md
// §4.A's storage layer is described as pluggable; this is this
// system's second concrete backend). SetS3 has no effect once
// SetCrypto is also set: Substrate owns its own encrypted-object
// storage (a kvstore.Store, not an objstore.Store) and never wraps
// FSStore or this S3 client.
func (h *Hub) SetS3(client s3store.Client, bucket string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.s3 = client
	h.s3Bucket = bucket
}

// Catalog exposes the underlying project/repository metadata store for
// the read-only administrative listings spec.md §6 leaves to the
// surrounding service (list projects, list repositories under a
// project) — Hub itself never needs to enumerate its own catalog.
func (h *Hub) Catalog() catalog.DB { return h.catalog }

func repoKey(project, name string) string { return project + "/" + name }

func (h *Hub) repoDir(project, name string) string {
	return filepath.Join(h.dataDir, "projects", project, name)
}

// openLocked opens (creating the on-disk layout if absent) the
// repository handle for project/name. Callers must hold h.mu.
func (h *Hub) openLocked(ctx context.Context, project, name string) (*repoHandle, error) {
	key := repoKey(project, name)
	if rh, ok := h.repos[key]; ok {
		return rh, nil
	}

	dir := h.repoDir(project, name)
	var store objstore.Store
	switch {
	case h.crypto != nil:
		// Substrate is the store: it persists sealed objects in its own
		// kvstore, bypassing FSStore/s3store entirely.
		store = crypto.NewEncryptedStore(h.crypto, project, name)
	case h.s3 != nil:
		store = s3store.New(h.s3, h.s3Bucket, key)
	default:
		fsStore, err := objstore.NewFSStore(filepath.Join(dir, "objects"), h.log)
		if err != nil {
			return nil, fmt.Errorf("hub: open object store for %s: %w", key, err)
		}
		store = fsStore
	}
	index, err := commitindex.Open(filepath.Join(dir, "commit_ids.dat"), true)
	if err != nil {
		return nil, fmt.Errorf("hub: open commit index for %s: %w", key, err)
	}
	engine, err := repo.Open(ctx, store, index, h.log)
	if err != nil {
		return nil, fmt.Errorf("hub: open engine for %s: %w", key, err)
	}

	mux := watch.New()
	engine.SetPublishHook(func(ctx context.Context, revision int64, changedPaths []string) {
		// Publish order matters: invalidate cached reads before waking
		// watchers, so a watcher that wakes and immediately re-reads
		// never observes a stale cache entry (spec.md §4.D/§4.E
		// ordering).
		if h.cache != nil {
			h.cache.InvalidateRepository(key)
		}
		mux.Notify(revision, changedPaths)
	})

	rh := &repoHandle{engine: engine, mux: mux, store: store, index: index}
	h.repos[key] = rh
	return rh, nil
}

func (h *Hub) open(ctx context.Context, project, name string) (*repoHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.openLocked(ctx, project, name)
}

// forget drops project/name's in-memory handle (used after a
// remove/purge so a subsequent create starts from a clean slate
// in-process; the catalog row, not this map, is this system's
// durable truth about whether the repository exists).
func (h *Hub) forget(project, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := repoKey(project, name)
	if rh, ok := h.repos[key]; ok {
		rh.index.Close()
		delete(h.repos, key)
	}
}

// IsLeader/ReadOnly plumbing: the raft node this process owns sets
// read-only mode via UpdateServerStatus commands, so Hub itself holds
// only the boolean, not the election logic.
func (h *Hub) readOnlyMode() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readOnly
}

func (h *Hub) setReadOnly(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readOnly = v
}

var _ cluster.Executor = (*Hub)(nil)
