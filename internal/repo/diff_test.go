// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/jsonpatch"
	"github.com/antgroup/lineage/internal/pattern"
)

func commitChanges(t *testing.T, e *Engine, base int64, summary string, changes ...Change) {
	t.Helper()
	_, err := e.Commit(context.Background(), CommitRequest{
		BaseRevision: base,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      summary,
		Changes:      changes,
	})
	require.NoError(t, err)
}

func TestDiffIsEmptyForSameRevision(t *testing.T) {
	e := newTestEngine(t)
	diffs, err := e.Diff(context.Background(), 1, 1, pattern.MatchAll())
	require.NoError(t, err)
	require.Empty(t, diffs)
}

func TestDiffReportsAddModifyRemove(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed",
		Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("one")},
		Change{Op: OpUpsertJSON, Path: "/b.json", Content: []byte(`{"x":1}`)},
	)
	commitChanges(t, e, 2, "mutate",
		Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("two")},
		Change{Op: OpRemove, Path: "/b.json"},
		Change{Op: OpUpsertText, Path: "/c.txt", Content: []byte("three")},
	)

	diffs, err := e.Diff(context.Background(), 2, 3, pattern.MatchAll())
	require.NoError(t, err)
	require.Len(t, diffs, 3)

	byPath := map[string]FileDiff{}
	for _, d := range diffs {
		byPath[d.Path] = d
	}
	require.Equal(t, DiffModify, byPath["/a.txt"].Kind)
	require.Contains(t, byPath["/a.txt"].TextPatch, "-one")
	require.Contains(t, byPath["/a.txt"].TextPatch, "+two")
	require.Equal(t, DiffRemove, byPath["/b.json"].Kind)
	require.Equal(t, DiffAdd, byPath["/c.txt"].Kind)
}

func TestDiffJSONModifyIsSafeReplaceForm(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertJSON, Path: "/a.json", Content: []byte(`{"foo":"bar","keep":1}`)})
	commitChanges(t, e, 2, "mutate", Change{Op: OpUpsertJSON, Path: "/a.json", Content: []byte(`{"foo":"baz","keep":1}`)})

	diffs, err := e.Diff(context.Background(), 2, 3, pattern.MatchAll())
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, DiffModify, diffs[0].Kind)

	patch, err := jsonpatch.Parse(diffs[0].JSONPatch)
	require.NoError(t, err)
	require.Len(t, patch.Ops, 1)
	require.Equal(t, "safeReplace", patch.Ops[0].Op)
	require.Equal(t, "/foo", patch.Ops[0].Path)

	// The emitted patch must actually apply against the pre-diff content.
	next, err := jsonpatch.Apply([]byte(`{"foo":"bar","keep":1}`), patch)
	require.NoError(t, err)
	require.JSONEq(t, `{"foo":"baz","keep":1}`, string(next))
}

func TestDiffDetectsRenameByContentIdentity(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertText, Path: "/old.txt", Content: []byte("same content")})
	commitChanges(t, e, 2, "rename", Change{Op: OpRename, Path: "/old.txt", NewPath: "/new.txt"})

	diffs, err := e.Diff(context.Background(), 2, 3, pattern.MatchAll())
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, DiffRename, diffs[0].Kind)
	require.Equal(t, "/old.txt", diffs[0].Path)
	require.Equal(t, "/new.txt", diffs[0].NewPath)
}

func TestHistoryFiltersByPattern(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "a.txt", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("1")})
	commitChanges(t, e, 2, "b.txt", Change{Op: OpUpsertText, Path: "/b.txt", Content: []byte("1")})
	commitChanges(t, e, 3, "a.txt again", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("2")})

	entries, err := e.History(context.Background(), 1, 4, pattern.Compile("/a.txt"), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].Revision)
	require.Equal(t, int64(4), entries[1].Revision)
}

func TestFindLatestRevisionReturnsNewestMatch(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "a.txt", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("1")})
	commitChanges(t, e, 2, "b.txt", Change{Op: OpUpsertText, Path: "/b.txt", Content: []byte("1")})
	commitChanges(t, e, 3, "a.txt again", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("2")})

	rev, ok, err := e.FindLatestRevision(context.Background(), 1, pattern.Compile("/a.txt"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4), rev)

	_, ok, err = e.FindLatestRevision(context.Background(), 4, pattern.Compile("/a.txt"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHistoryDescendingWhenFromAfterTo(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "a.txt", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("1")})
	commitChanges(t, e, 2, "a.txt again", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("2")})

	entries, err := e.History(context.Background(), 3, 1, pattern.MatchAll(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(3), entries[0].Revision)
	require.Equal(t, int64(2), entries[1].Revision)
}
