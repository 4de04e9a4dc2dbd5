// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/pattern"
)

func TestFindListsMatchingEntriesIncludingDirectory(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed",
		Change{Op: OpUpsertText, Path: "/configs/service/a.txt", Content: []byte("a")},
		Change{Op: OpUpsertText, Path: "/top.txt", Content: []byte("top")},
	)

	entries, err := e.Find(context.Background(), 2, pattern.Compile("/configs/**"), FindOptions{FetchContent: true})
	require.NoError(t, err)

	byPath := map[string]Entry{}
	for _, entry := range entries {
		byPath[entry.Path] = entry
	}
	require.Contains(t, byPath, "/configs")
	require.Equal(t, TypeDirectory, byPath["/configs"].Type)
	require.Contains(t, byPath, "/configs/service")
	require.Contains(t, byPath, "/configs/service/a.txt")
	require.Equal(t, "a\n", string(byPath["/configs/service/a.txt"].Content))
	require.NotContains(t, byPath, "/top.txt")
}

func TestFindMaxEntriesCaps(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed",
		Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("a")},
		Change{Op: OpUpsertText, Path: "/b.txt", Content: []byte("b")},
		Change{Op: OpUpsertText, Path: "/c.txt", Content: []byte("c")},
	)

	entries, err := e.Find(context.Background(), 2, pattern.MatchAll(), FindOptions{MaxEntries: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestIdentityTypeAssertionRejectsMismatch(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("a")})

	_, err := e.Get(context.Background(), 2, IdentityJSON("/a.txt"))
	require.True(t, dogmaerr.IsErrEntryNotFound(err))

	entry, err := e.Get(context.Background(), 2, IdentityText("/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\n", string(entry.Content))
}

func TestJSONPathQueryAppliesExpressionsInOrder(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertJSON, Path: "/a.json", Content: []byte(`{"services":{"auth":{"port":8080}}}`)})

	q, err := NewJSONPathQuery("/a.json", []string{"services.auth", "port"})
	require.NoError(t, err)

	entry, err := e.Get(context.Background(), 2, q)
	require.NoError(t, err)
	require.Equal(t, "8080", string(entry.Content))
}

func TestJSONPathQueryFailsCompileOnEmptyExpression(t *testing.T) {
	_, err := NewJSONPathQuery("/a.json", []string{""})
	require.Error(t, err)
}

func TestJSONPathQueryMissingFieldIsEntryNotFound(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertJSON, Path: "/a.json", Content: []byte(`{"foo":"bar"}`)})

	q, err := NewJSONPathQuery("/a.json", []string{"missing"})
	require.NoError(t, err)

	_, err = e.Get(context.Background(), 2, q)
	require.True(t, dogmaerr.IsErrEntryNotFound(err))
}
