// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/commitindex"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/objstore"
	"github.com/antgroup/lineage/internal/pattern"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := objstore.NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)
	index, err := commitindex.Open(filepath.Join(t.TempDir(), "commit_ids.dat"), true)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	e, err := Open(context.Background(), store, index, nil)
	require.NoError(t, err)
	_, err = e.Bootstrap(context.Background(), testAuthor(), "Create repository")
	require.NoError(t, err)
	return e
}

func testAuthor() object.Signature {
	return object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
}

// Scenario 1 (spec.md §8): initial creation.
func TestInitialCreation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.Equal(t, int64(1), e.Head())

	entries, err := e.Find(ctx, 1, pattern.MatchAll(), FindOptions{FetchContent: true})
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = e.Get(ctx, 0, Identity("/x"))
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrRevisionNotFound(err))
}

// Scenario 2 (spec.md §8): text upsert and read-back, then redundant push.
func TestTextUpsertAndReadBack(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	commit, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "add a.txt",
		Changes:      []Change{{Op: OpUpsertText, Path: "/a.txt", Content: []byte("hello")}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), commit.Revision)
	require.Equal(t, int64(2), e.Head())

	entry, err := e.Get(ctx, 2, Identity("/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(entry.Content))

	_, err = e.Commit(ctx, CommitRequest{
		BaseRevision: 2,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "add a.txt again",
		Changes:      []Change{{Op: OpUpsertText, Path: "/a.txt", Content: []byte("hello")}},
	})
	require.ErrorIs(t, err, dogmaerr.ErrRedundantChange)
	require.Equal(t, int64(2), e.Head())
}

// Scenario 3 (spec.md §8): a safeReplace JSON patch, then a conflicting replay.
func TestJSONPatchSafeReplaceAndConflictingReplay(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "add a.json",
		Changes:      []Change{{Op: OpUpsertJSON, Path: "/a.json", Content: []byte(`{"foo":"bar"}`)}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), e.Head())

	patch := []byte(`[{"op":"safeReplace","path":"/foo","oldValue":"bar","value":"baz"}]`)
	commit, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 2,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "bar -> baz",
		Changes:      []Change{{Op: OpApplyJSONPatch, Path: "/a.json", Patch: patch}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), commit.Revision)

	entry, err := e.Get(ctx, 3, Identity("/a.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"foo":"baz"}`, string(entry.Content))

	_, err = e.Commit(ctx, CommitRequest{
		BaseRevision: 3,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "replay stale patch",
		Changes:      []Change{{Op: OpApplyJSONPatch, Path: "/a.json", Patch: patch}},
	})
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrChangeConflict(err))
	require.Equal(t, int64(3), e.Head())
}

func TestCommitPublishesChangedPathsOffLock(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	var gotRevision int64
	var gotPaths []string
	e.SetPublishHook(func(_ context.Context, revision int64, paths []string) {
		gotRevision = revision
		gotPaths = paths
	})

	_, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "add b.txt",
		Changes:      []Change{{Op: OpUpsertText, Path: "/b.txt", Content: []byte("x")}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), gotRevision)
	require.Equal(t, []string{"/b.txt"}, gotPaths)
}

func TestRenameMovesDirectoryDescendants(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "seed configs",
		Changes: []Change{
			{Op: OpUpsertText, Path: "/configs/a.txt", Content: []byte("a")},
			{Op: OpUpsertText, Path: "/configs/b.txt", Content: []byte("b")},
		},
	})
	require.NoError(t, err)

	_, err = e.Commit(ctx, CommitRequest{
		BaseRevision: 2,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "rename configs dir",
		Changes:      []Change{{Op: OpRename, Path: "/configs", NewPath: "/settings"}},
	})
	require.NoError(t, err)

	_, err = e.Get(ctx, 3, Identity("/configs/a.txt"))
	require.True(t, dogmaerr.IsErrEntryNotFound(err))

	entry, err := e.Get(ctx, 3, Identity("/settings/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\n", string(entry.Content))
}

func TestRenameFailsWhenDestinationExists(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "seed",
		Changes: []Change{
			{Op: OpUpsertText, Path: "/a.txt", Content: []byte("a")},
			{Op: OpUpsertText, Path: "/b.txt", Content: []byte("b")},
		},
	})
	require.NoError(t, err)

	_, err = e.Commit(ctx, CommitRequest{
		BaseRevision: 2,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "rename onto existing",
		Changes:      []Change{{Op: OpRename, Path: "/a.txt", NewPath: "/b.txt"}},
	})
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrChangeConflict(err))
}

func TestRemoveMissingFailsChangeConflict(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "remove nothing",
		Changes:      []Change{{Op: OpRemove, Path: "/missing.txt"}},
	})
	require.Error(t, err)
	require.True(t, dogmaerr.IsErrChangeConflict(err))
}

func TestAllowEmptyPermitsNoOpCommit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	commit, err := e.Commit(ctx, CommitRequest{
		BaseRevision: 1,
		Author:       testAuthor(),
		Committer:    testAuthor(),
		Summary:      "empty commit",
		AllowEmpty:   true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), commit.Revision)
}
