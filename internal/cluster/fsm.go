// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cluster is the command executor and replicated command log:
// the single write authority spec.md §4.F describes, implemented over
// hashicorp/raft so the same binary provides both external
// collaborator interfaces §6 calls out (leader election, replicated
// log) instead of requiring them to be supplied separately.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Executor applies one decoded Command to local state and returns its
// result. It is invoked by the FSM from raft's apply loop on the
// leader (while Node.Apply waits on the apply future) and, identically, on every
// follower replaying the same log entry (spec.md §4.F step 5: "all
// replicas converge to bit-identical repository state"), so Execute
// must be deterministic given the command payload alone.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (any, error)
}

// FSM adapts an Executor to raft.FSM. It carries no state of its own
// beyond the executor handle: Snapshot/Restore are no-ops because the
// durable state a command mutates (catalog rows, per-repository object
// stores and commit indexes) is already persisted outside the raft log
// by the Executor itself on every Apply; the only thing raft's own
// snapshot would compact is the log of already-applied, now-redundant
// commands, which this system accepts keeping (commands are small JSON
// envelopes, not rewritten blobs) rather than adding a second,
// independent serialization of the same state.
type FSM struct {
	mu       sync.Mutex
	executor Executor
}

// NewFSM wraps executor for use as a hashicorp/raft FSM.
func NewFSM(executor Executor) *FSM {
	return &FSM{executor: executor}
}

// applyResult is what Apply returns through raft's future; Node.Apply
// unwraps it back into (any, error).
type applyResult struct {
	Value any
	Err   error
}

// Apply decodes log.Data as a Command and executes it (raft.FSM).
// Grounded on cuemby-warren's WarrenFSM.Apply: unmarshal envelope,
// lock, dispatch — generalized from a Go switch over fixed command
// strings to a single Executor.Execute call, since this system's
// command set is owned by internal/cluster itself rather than by the
// FSM.
func (f *FSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return applyResult{Err: fmt.Errorf("cluster: decode command: %w", err)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	value, err := f.executor.Execute(context.Background(), cmd)
	return applyResult{Value: value, Err: err}
}

// Snapshot returns an empty snapshot; see the FSM doc comment for why.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return emptySnapshot{}, nil
}

// Restore is a no-op for the same reason Snapshot is.
func (f *FSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type emptySnapshot struct{}

func (emptySnapshot) Persist(sink raft.SnapshotSink) error {
	return sink.Close()
}

func (emptySnapshot) Release() {}
