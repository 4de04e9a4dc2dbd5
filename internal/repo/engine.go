// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/commitindex"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
)

// PublishFunc is invoked, off the write lock, after a commit advances
// head (spec.md §4.C step 10: "release the lock; synchronously (off-
// lock) notify the watch multiplexer with the set of changed paths").
type PublishFunc func(ctx context.Context, revision int64, changedPaths []string)

// CommitRequest is the input to Commit: spec.md §4.C's "base revision
// (may be relative), author, time, summary, detail, markup, list of
// changes, allow_empty flag".
type CommitRequest struct {
	BaseRevision int64
	Author       object.Signature
	Committer    object.Signature
	Summary      string
	Detail       string
	Markup       object.Markup
	Changes      []Change
	AllowEmpty   bool
}

// Engine is the per-repository write path and read path described in
// spec.md §4.C: a single linear commit log over an object store and
// commit-id index, serialized by one write lock per repository.
//
// writeMu is exactly the "per-repository write lock" of step 1;
// readers (Find, Get, Diff, History) never take it. head/headCommit/
// headTree are instead guarded by the much shorter-held headMu, so a
// reader observing the previous head while a commit is mid-flight
// never blocks on the writer's (potentially slow) tree rebuild and
// object-store writes, matching §5's "readers are non-blocking".
type Engine struct {
	store objstore.Store
	index *commitindex.Index

	writeMu sync.Mutex

	headMu     sync.RWMutex
	head       int64
	headCommit hash.Hash
	headTree   hash.Hash

	onPublish PublishFunc
	log       *logrus.Entry
}

// Open resolves the current head from index and backs it with store.
// A freshly created repository (empty index) opens with head 0;
// callers must call Bootstrap before any Commit.
func Open(ctx context.Context, store objstore.Store, index *commitindex.Index, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{store: store, index: index, log: log.WithField("component", "repo.engine")}

	head, err := index.Head()
	if err != nil {
		return nil, err
	}
	if head == 0 {
		return e, nil
	}
	commitHash, err := index.Get(head)
	if err != nil {
		return nil, err
	}
	commit, err := objstore.GetCommit(ctx, store, commitHash)
	if err != nil {
		return nil, err
	}
	e.head, e.headCommit, e.headTree = head, commitHash, commit.Tree
	return e, nil
}

// SetPublishHook installs the watch-multiplexer notification callback.
func (e *Engine) SetPublishHook(fn PublishFunc) { e.onPublish = fn }

// Head returns the current head revision (0 for an uninitialized
// repository), without taking the write lock.
func (e *Engine) Head() int64 {
	e.headMu.RLock()
	defer e.headMu.RUnlock()
	return e.head
}

func (e *Engine) headSnapshot() (int64, hash.Hash, hash.Hash) {
	e.headMu.RLock()
	defer e.headMu.RUnlock()
	return e.head, e.headCommit, e.headTree
}

func (e *Engine) publishHead(rev int64, commit, tree hash.Hash) {
	e.headMu.Lock()
	e.head, e.headCommit, e.headTree = rev, commit, tree
	e.headMu.Unlock()
}

// resolveRevision normalizes a possibly-relative revision (spec.md
// §3: "≥ 1 absolute or ≤ −1 relative from head") against the current
// head. -1 is head, -2 is head-1, and so on.
func (e *Engine) resolveRevision(rev int64) (int64, error) {
	head := e.Head()
	var abs int64
	switch {
	case rev >= 1:
		abs = rev
	case rev <= -1:
		abs = head + rev + 1
	default:
		return 0, dogmaerr.NewErrRevisionNotFound(rev, head)
	}
	if abs < 1 || abs > head {
		return 0, dogmaerr.NewErrRevisionNotFound(rev, head)
	}
	return abs, nil
}

// treeAt resolves the tree hash a commit at revision points to.
func (e *Engine) treeAt(ctx context.Context, revision int64) (hash.Hash, error) {
	commitHash, err := e.index.Get(revision)
	if err != nil {
		return hash.Zero, err
	}
	commit, err := objstore.GetCommit(ctx, e.store, commitHash)
	if err != nil {
		return hash.Zero, err
	}
	return commit.Tree, nil
}

// Bootstrap creates a repository's revision 1: an empty commit over
// an empty tree (spec.md §3: "Repositories are created with one empty
// commit (revision 1)").
func (e *Engine) Bootstrap(ctx context.Context, author object.Signature, summary string) (*object.Commit, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.Head() != 0 {
		return nil, fmt.Errorf("repo: repository already initialized at revision %d", e.Head())
	}

	treeHash, err := saveTree(ctx, e.store, newDirNode())
	if err != nil {
		return nil, err
	}
	commit := &object.Commit{
		Parent:    hash.Zero,
		Tree:      treeHash,
		Revision:  1,
		Author:    author,
		Committer: author,
		Summary:   summary,
		Markup:    object.MarkupPlaintext,
	}
	commitHash, err := objstore.PutEncoder(ctx, e.store, object.CommitKind, commit)
	if err != nil {
		return nil, err
	}
	commit.Hash = commitHash
	if err := e.index.Put(1, commitHash); err != nil {
		return nil, err
	}
	e.publishHead(1, commitHash, treeHash)
	return commit, nil
}

// Commit runs the 10-step algorithm of spec.md §4.C. Steps 1-9 execute
// under the write lock in commitLocked; step 10 (releasing the lock,
// then synchronously notifying the watch multiplexer) happens here,
// after writeMu.Unlock returns.
func (e *Engine) Commit(ctx context.Context, req CommitRequest) (*object.Commit, error) {
	e.writeMu.Lock()
	commit, changedPaths, err := e.commitLocked(ctx, req)
	e.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	if e.onPublish != nil {
		e.onPublish(ctx, commit.Revision, changedPaths)
	}
	return commit, nil
}

func (e *Engine) commitLocked(ctx context.Context, req CommitRequest) (*object.Commit, []string, error) {
	head, headCommit, headTree := e.headSnapshot()

	// Step 2: normalize the base revision and reject unless it is on
	// the head's line. This system has exactly one branch per
	// repository (spec.md §1 non-goals), so "base.major == head.major"
	// degenerates to: the base must resolve to some revision in
	// [1, head] — there is no second line it could otherwise belong to.
	if _, err := e.resolveRevision(req.BaseRevision); err != nil {
		return nil, nil, err
	}

	// Step 3: build the mutable working tree from head.
	root, err := loadTree(ctx, e.store, headTree)
	if err != nil {
		return nil, nil, err
	}

	// Step 4: apply each change in order.
	var changedPaths []string
	for _, c := range req.Changes {
		changed, err := applyChange(root, c)
		if err != nil {
			return nil, nil, err
		}
		if changed {
			changedPaths = append(changedPaths, c.Path)
			if c.Op == OpRename {
				changedPaths = append(changedPaths, c.NewPath)
			}
		}
	}

	// Step 5: compute the new tree hash and fail if nothing changed.
	newTreeHash, err := saveTree(ctx, e.store, root)
	if err != nil {
		return nil, nil, err
	}
	if newTreeHash == headTree && !req.AllowEmpty {
		return nil, nil, dogmaerr.ErrRedundantChange
	}

	// Step 6: build the commit object.
	newRevision := head + 1
	commit := &object.Commit{
		Parent:    headCommit,
		Tree:      newTreeHash,
		Revision:  newRevision,
		Author:    req.Author,
		Committer: req.Committer,
		Summary:   req.Summary,
		Detail:    req.Detail,
		Markup:    req.Markup,
	}

	// Step 7: persist blobs/trees (already written by saveTree) and
	// the commit object itself into the object store.
	commitHash, err := objstore.PutEncoder(ctx, e.store, object.CommitKind, commit)
	if err != nil {
		return nil, nil, err
	}
	commit.Hash = commitHash

	// Step 8: append to the commit-id index (the branch ref is the
	// in-memory head this engine owns; there is no separate ref file
	// to update beyond what headMu already tracks).
	if err := e.index.Put(newRevision, commitHash); err != nil {
		return nil, nil, err
	}

	// Step 9: advance in-memory head.
	e.publishHead(newRevision, commitHash, newTreeHash)

	return commit, changedPaths, nil
}
