// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the query/merge memoization layer: a
// concurrent bounded-weight map keyed by cacheable-call identity, with
// at-most-one inflight execution per key.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// CallType identifies one of the cacheable call shapes.
type CallType string

const (
	CallFind               CallType = "find"
	CallGet                CallType = "get"
	CallHistory            CallType = "history"
	CallDiffSingle         CallType = "diff_single"
	CallDiffPattern        CallType = "diff_pattern"
	CallFindLatestRevision CallType = "find_latest_revision"
	CallMergeFiles         CallType = "merge_files"
)

// Call identifies a single cacheable invocation. Revision should be the
// already-resolved absolute revision for calls pinned to one (find, get,
// diff, history); calls that are inherently relative to the current head
// (find-latest-revision) should pass the caller's raw last-known revision
// instead, since there is no absolute revision to resolve against yet.
type Call struct {
	Type       CallType
	Repository string
	Revision   int64
	Key        string // operation-specific fields (pattern, query, paths...), caller-encoded
	Weight     int64
}

func (c Call) cacheKey(generation uint64) string {
	return fmt.Sprintf("%s/%s/g%d/r%d/%s", c.Type, c.Repository, generation, c.Revision, c.Key)
}

type cached struct {
	value any
	err   error
}

// Cache is a shared concurrent structure: readers freely get/put and
// eviction is internal (spec.md §5, "shared resource policy").
type Cache struct {
	rc  *ristretto.Cache[string, cached]
	sf  singleflight.Group
	gen sync.Map // repository -> *atomic.Uint64
}

// New builds a cache with the given ristretto sizing knobs. maxCost is in
// bytes; callers should size Call.Weight in the same unit (see weight.go).
func New(numCounters, maxCost, bufferItems int64) (*Cache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, cached]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize query cache: %w", err)
	}
	return &Cache{rc: rc}, nil
}

func (c *Cache) generationCounter(repo string) *atomic.Uint64 {
	v, _ := c.gen.LoadOrStore(repo, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (c *Cache) generation(repo string) uint64 {
	return c.generationCounter(repo).Load()
}

// InvalidateRepository bumps the repository's generation counter, which is
// folded into every cache key for that repository. This invalidates every
// previously cached entry for the repository, including ones pinned to an
// already-resolved absolute revision whose value could never change —
// coarser than strictly required, but ristretto has no per-prefix
// deletion, and the only cost of over-invalidating is a forced cache miss,
// never a stale read. Callers invoke this once per published revision,
// before notifying watchers (spec.md §5: "a write that publishes revision
// R invalidates dependent cache entries before notifying watchers").
func (c *Cache) InvalidateRepository(repo string) {
	c.generationCounter(repo).Add(1)
}

// Execute implements get(call) -> future<value>: at most one inflight
// execution per key, with concurrent callers sharing it. A non-nil error
// is cached only when it is one of the deterministic dogmaerr
// entry/revision-not-found kinds (the outcome is fixed by the pinned
// revision and will never change); any other error is treated as an
// exception per spec.md §4.D and never cached.
func (c *Cache) Execute(ctx context.Context, call Call, execute func(ctx context.Context) (any, error)) (any, error) {
	key := call.cacheKey(c.generation(call.Repository))
	if v, ok := c.rc.Get(key); ok {
		return v.value, v.err
	}

	raw, err, _ := c.sf.Do(key, func() (any, error) {
		value, execErr := execute(ctx)
		if isCacheable(execErr) {
			c.rc.SetWithTTL(key, cached{value: value, err: execErr}, call.Weight, 0)
		}
		return cached{value: value, err: execErr}, nil
	})
	if err != nil {
		// singleflight itself never errors here: execute's error is carried
		// inside the cached struct, not returned from Do.
		return nil, err
	}
	res := raw.(cached)
	return res.value, res.err
}

// Attach implements the two-phase pattern used by get(query) and
// merge-files: a value already computed outside Execute's singleflight
// path (e.g. while satisfying a different, broader call) is stored
// directly under this call's key.
func (c *Cache) Attach(call Call, value any, err error) {
	if !isCacheable(err) {
		return
	}
	key := call.cacheKey(c.generation(call.Repository))
	c.rc.SetWithTTL(key, cached{value: value, err: err}, call.Weight, 0)
}

func isCacheable(err error) bool {
	if err == nil {
		return true
	}
	return dogmaerr.IsErrEntryNotFound(err) || dogmaerr.IsErrRevisionNotFound(err)
}

// Close releases the underlying ristretto cache's background goroutines.
func (c *Cache) Close() {
	c.rc.Close()
}

// Wait blocks until all pending ristretto writes (Set/SetWithTTL calls
// already issued) have been applied. Ristretto buffers writes through an
// internal ring rather than applying them inline; production callers never
// need this (a miss just re-executes), but tests asserting "a prior Execute
// populated the cache" need the write to be visible before their next Get.
func (c *Cache) Wait() {
	c.rc.Wait()
}
