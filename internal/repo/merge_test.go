// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeFilesOverlaysInOrder(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed",
		Change{Op: OpUpsertJSON, Path: "/base.json", Content: []byte(`{"timeout":30,"nested":{"a":1,"b":2}}`)},
		Change{Op: OpUpsertJSON, Path: "/override.json", Content: []byte(`{"timeout":60,"nested":{"b":3}}`)},
	)

	merged, err := e.MergeFiles(context.Background(), 2, []string{"/base.json", "/override.json"})
	require.NoError(t, err)
	require.JSONEq(t, `{"timeout":60,"nested":{"a":1,"b":3}}`, string(merged))
}

func TestMergeFilesFailsOnMissingPath(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.MergeFiles(context.Background(), 1, []string{"/missing.json"})
	require.Error(t, err)
}

func TestMergeFilesFailsOnNonJSONPath(t *testing.T) {
	e := newTestEngine(t)
	commitChanges(t, e, 1, "seed", Change{Op: OpUpsertText, Path: "/a.txt", Content: []byte("a")})
	_, err := e.MergeFiles(context.Background(), 2, []string{"/a.txt"})
	require.Error(t, err)
}
