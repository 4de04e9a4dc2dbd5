// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	seen []Command
	next func(cmd Command) (any, error)
}

func (e *recordingExecutor) Execute(_ context.Context, cmd Command) (any, error) {
	e.seen = append(e.seen, cmd)
	if e.next != nil {
		return e.next(cmd)
	}
	return nil, nil
}

func TestFSMApplyDecodesAndDispatchesCommand(t *testing.T) {
	exec := &recordingExecutor{next: func(cmd Command) (any, error) { return "ok", nil }}
	fsm := NewFSM(exec)

	cmd, err := NewCommand(OpCreateProject, CreateProjectPayload{Name: "demo", AuthorName: "a", AuthorEmail: "a@b.c"})
	require.NoError(t, err)
	data, err := marshalCommand(cmd)
	require.NoError(t, err)

	raw := fsm.Apply(&raft.Log{Data: data})
	result, ok := raw.(applyResult)
	require.True(t, ok)
	require.NoError(t, result.Err)
	require.Equal(t, "ok", result.Value)

	require.Len(t, exec.seen, 1)
	require.Equal(t, OpCreateProject, exec.seen[0].Op)
}

func TestFSMApplyReturnsExecutorError(t *testing.T) {
	wantErr := &fakeConflictErr{}
	exec := &recordingExecutor{next: func(cmd Command) (any, error) { return nil, wantErr }}
	fsm := NewFSM(exec)

	cmd, err := NewCommand(OpRemoveProject, ProjectNamePayload{Name: "demo"})
	require.NoError(t, err)
	data, err := marshalCommand(cmd)
	require.NoError(t, err)

	raw := fsm.Apply(&raft.Log{Data: data})
	result := raw.(applyResult)
	require.ErrorIs(t, result.Err, wantErr)
}

func TestFSMApplyRejectsMalformedCommand(t *testing.T) {
	fsm := NewFSM(&recordingExecutor{})
	raw := fsm.Apply(&raft.Log{Data: []byte("not json")})
	result := raw.(applyResult)
	require.Error(t, result.Err)
}

func TestFSMSnapshotAndRestoreAreNoops(t *testing.T) {
	fsm := NewFSM(&recordingExecutor{})
	snap, err := fsm.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.NoError(t, fsm.Restore(io.NopCloser(strings.NewReader(""))))
}

type fakeConflictErr struct{}

func (e *fakeConflictErr) Error() string { return "already exists" }
