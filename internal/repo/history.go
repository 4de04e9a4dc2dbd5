// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"context"

	"github.com/antgroup/lineage/internal/hash"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
	"github.com/antgroup/lineage/internal/pattern"
)

// HistoryEntry is one commit returned by History.
type HistoryEntry struct {
	Revision int64
	Commit   *object.Commit
}

// History walks the linear parent chain between from and to (spec.md
// §4.C: "walks the linear parent chain between the two absolute
// revisions, filters commits whose tree-diff against the parent
// touches a path matching the pattern, and returns up to max commits
// in descending order unless from ≤ to").
func (e *Engine) History(ctx context.Context, from, to int64, pat *pattern.PathPattern, max int) ([]HistoryEntry, error) {
	fromAbs, err := e.resolveRevision(from)
	if err != nil {
		return nil, err
	}
	toAbs, err := e.resolveRevision(to)
	if err != nil {
		return nil, err
	}

	ascending := fromAbs <= toAbs
	lo, hi := fromAbs, toAbs
	if lo > hi {
		lo, hi = hi, lo
	}

	var matches []HistoryEntry
	for rev := lo; rev <= hi; rev++ {
		commitHash, err := e.index.Get(rev)
		if err != nil {
			return nil, err
		}
		commit, err := objstore.GetCommit(ctx, e.store, commitHash)
		if err != nil {
			return nil, err
		}
		touched, err := e.commitTouches(ctx, commit, pat)
		if err != nil {
			return nil, err
		}
		if touched {
			matches = append(matches, HistoryEntry{Revision: rev, Commit: commit})
		}
	}

	if !ascending {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}
	if max > 0 && len(matches) > max {
		matches = matches[:max]
	}
	return matches, nil
}

// FindLatestRevision reports the newest revision in (lastKnown, head]
// whose commit touches a path matching pat, or ok=false if none does
// (spec.md §4.C: "find_latest_revision"). lastKnown < 1 is treated as
// "no revision known yet", i.e. the whole history is in range.
func (e *Engine) FindLatestRevision(ctx context.Context, lastKnown int64, pat *pattern.PathPattern) (revision int64, ok bool, err error) {
	head := e.Head()
	if lastKnown < 0 {
		lastKnown = 0
	}
	for rev := head; rev > lastKnown; rev-- {
		commitHash, err := e.index.Get(rev)
		if err != nil {
			return 0, false, err
		}
		commit, err := objstore.GetCommit(ctx, e.store, commitHash)
		if err != nil {
			return 0, false, err
		}
		touched, err := e.commitTouches(ctx, commit, pat)
		if err != nil {
			return 0, false, err
		}
		if touched {
			return rev, true, nil
		}
	}
	return 0, false, nil
}

// commitTouches reports whether commit's tree differs from its
// parent's at any path matching pat.
func (e *Engine) commitTouches(ctx context.Context, commit *object.Commit, pat *pattern.PathPattern) (bool, error) {
	parentTree := hash.Zero
	if !commit.IsRoot() {
		parentCommit, err := objstore.GetCommit(ctx, e.store, commit.Parent)
		if err != nil {
			return false, err
		}
		parentTree = parentCommit.Tree
	}

	fromRoot, err := loadTree(ctx, e.store, parentTree)
	if err != nil {
		return false, err
	}
	toRoot, err := loadTree(ctx, e.store, commit.Tree)
	if err != nil {
		return false, err
	}
	fromFiles := flattenFiles(fromRoot)
	toFiles := flattenFiles(toRoot)

	for p, fn := range fromFiles {
		if !pat.Match(p) {
			continue
		}
		tn, ok := toFiles[p]
		if !ok || !bytes.Equal(fn.content, tn.content) {
			return true, nil
		}
	}
	for p := range toFiles {
		if !pat.Match(p) {
			continue
		}
		if _, ok := fromFiles[p]; !ok {
			return true, nil
		}
	}
	return false, nil
}
