// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"strconv"
	"time"

	"github.com/antgroup/lineage/internal/cache"
	"github.com/antgroup/lineage/internal/pattern"
	"github.com/antgroup/lineage/internal/repo"
	"github.com/antgroup/lineage/internal/watch"
)

// Find runs a memoized internal/repo.Engine.Find against project/
// repository, entirely outside the replicated log (spec.md §5:
// "reads are non-blocking" — they never wait on raft consensus, only
// on the target repository's own read path, which holds no write
// lock).
func (h *Hub) Find(ctx context.Context, project, repository string, revision int64, pat *pattern.PathPattern, opts repo.FindOptions) ([]repo.Entry, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return nil, err
	}
	if h.cache == nil {
		return rh.engine.Find(ctx, revision, pat, opts)
	}
	call := cache.Call{
		Type:       cache.CallFind,
		Repository: repoKey(project, repository),
		Revision:   revision,
		Key:        cache.JoinKey(pat.String(), boolKey(opts.FetchContent), intKey(opts.MaxEntries)),
		Weight:     cache.WeightStrings(pat.String()),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		return rh.engine.Find(ctx, revision, pat, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.([]repo.Entry), nil
}

// Get runs a memoized Engine.Get.
func (h *Hub) Get(ctx context.Context, project, repository string, revision int64, q repo.Query) (repo.Entry, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return repo.Entry{}, err
	}
	if h.cache == nil {
		return rh.engine.Get(ctx, revision, q)
	}
	call := cache.Call{
		Type:       cache.CallGet,
		Repository: repoKey(project, repository),
		Revision:   revision,
		Key:        queryKey(q),
		Weight:     cache.WeightStrings(queryKey(q)),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		return rh.engine.Get(ctx, revision, q)
	})
	if err != nil {
		return repo.Entry{}, err
	}
	return v.(repo.Entry), nil
}

// Diff runs a memoized Engine.Diff.
func (h *Hub) Diff(ctx context.Context, project, repository string, from, to int64, pat *pattern.PathPattern) ([]repo.FileDiff, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return nil, err
	}
	if h.cache == nil {
		return rh.engine.Diff(ctx, from, to, pat)
	}
	callType := cache.CallDiffPattern
	if pat.IsMatchAll() {
		callType = cache.CallDiffSingle
	}
	call := cache.Call{
		Type:       callType,
		Repository: repoKey(project, repository),
		Revision:   to,
		Key:        cache.JoinKey(intKey64(from), pat.String()),
		Weight:     cache.WeightStrings(pat.String()),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		return rh.engine.Diff(ctx, from, to, pat)
	})
	if err != nil {
		return nil, err
	}
	return v.([]repo.FileDiff), nil
}

// History runs a memoized Engine.History.
func (h *Hub) History(ctx context.Context, project, repository string, from, to int64, pat *pattern.PathPattern, max int) ([]repo.HistoryEntry, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return nil, err
	}
	if h.cache == nil {
		return rh.engine.History(ctx, from, to, pat, max)
	}
	call := cache.Call{
		Type:       cache.CallHistory,
		Repository: repoKey(project, repository),
		Revision:   to,
		Key:        cache.JoinKey(intKey64(from), pat.String(), intKey(max)),
		Weight:     cache.WeightStrings(pat.String()),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		return rh.engine.History(ctx, from, to, pat, max)
	})
	if err != nil {
		return nil, err
	}
	return v.([]repo.HistoryEntry), nil
}

// MergeFiles runs a memoized Engine.MergeFiles.
func (h *Hub) MergeFiles(ctx context.Context, project, repository string, revision int64, paths []string) ([]byte, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return nil, err
	}
	if h.cache == nil {
		return rh.engine.MergeFiles(ctx, revision, paths)
	}
	call := cache.Call{
		Type:       cache.CallMergeFiles,
		Repository: repoKey(project, repository),
		Revision:   revision,
		Key:        cache.JoinKey(paths...),
		Weight:     cache.WeightStrings(paths...),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		return rh.engine.MergeFiles(ctx, revision, paths)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Watch returns at once with the newest revision after lastKnown that
// touches pat, if one exists; otherwise it registers a long-poll waiter
// against project/repository's multiplexer and blocks until it resolves
// or ctx is done, matching spec.md §4.E's watch_repository/watch_file
// semantics layered over internal/watch.
func (h *Hub) Watch(ctx context.Context, project, repository string, lastKnown int64, pat *pattern.PathPattern, timeout time.Duration) (watch.Result, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return watch.Result{}, err
	}
	waiter, sink := rh.mux.Register(lastKnown, pat, timeout)
	if rev, ok, err := rh.engine.FindLatestRevision(ctx, lastKnown, pat); err != nil || ok {
		waiter.Cancel()
		<-sink
		if err != nil {
			return watch.Result{}, err
		}
		return watch.Result{Revision: rev}, nil
	}
	select {
	case result := <-sink:
		return result, nil
	case <-ctx.Done():
		waiter.Cancel()
		<-sink
		return watch.Result{}, ctx.Err()
	}
}

// FindLatestRevision reports the newest revision after lastKnown
// that touches pat, without blocking (spec.md §4.E: the non-waiting
// counterpart to Watch).
func (h *Hub) FindLatestRevision(ctx context.Context, project, repository string, lastKnown int64, pat *pattern.PathPattern) (int64, bool, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return 0, false, err
	}
	if h.cache == nil {
		return rh.engine.FindLatestRevision(ctx, lastKnown, pat)
	}
	call := cache.Call{
		Type:       cache.CallFindLatestRevision,
		Repository: repoKey(project, repository),
		Revision:   lastKnown,
		Key:        pat.String(),
		Weight:     cache.WeightStrings(pat.String()),
	}
	v, err := h.cache.Execute(ctx, call, func(ctx context.Context) (any, error) {
		revision, ok, err := rh.engine.FindLatestRevision(ctx, lastKnown, pat)
		return findLatestResult{revision, ok}, err
	})
	if err != nil {
		return 0, false, err
	}
	r := v.(findLatestResult)
	return r.revision, r.ok, nil
}

type findLatestResult struct {
	revision int64
	ok       bool
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func intKey(n int) string {
	return strconv.Itoa(n)
}

func intKey64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func queryKey(q repo.Query) string {
	switch v := q.(type) {
	case repo.IdentityQuery:
		return cache.JoinKey("identity", v.Path, string(v.Assert))
	case *repo.JSONPathQuery:
		return cache.JoinKey("jsonpath", v.Path, cache.JoinKey(v.Exprs...))
	default:
		return "unknown"
	}
}
