// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestSingleNodeBootstrapBecomesLeaderAndApplies(t *testing.T) {
	exec := &recordingExecutor{next: func(cmd Command) (any, error) { return "applied", nil }}
	cfg := Config{NodeID: "node-1", BindAddr: freeLoopbackAddr(t), DataDir: t.TempDir()}

	node, err := Start(cfg, exec, true)
	require.NoError(t, err)
	defer node.Shutdown()

	require.Eventually(t, node.IsLeader, 5*time.Second, 20*time.Millisecond)

	cmd, err := NewCommand(OpCreateProject, CreateProjectPayload{Name: "demo"})
	require.NoError(t, err)

	value, err := node.Apply(cmd, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "applied", value)
	require.Len(t, exec.seen, 1)
	require.Equal(t, OpCreateProject, exec.seen[0].Op)
}

func TestLeadershipCallbacksFireOnBootstrap(t *testing.T) {
	exec := &recordingExecutor{}
	cfg := Config{NodeID: "node-1", BindAddr: freeLoopbackAddr(t), DataDir: t.TempDir()}

	node, err := Start(cfg, exec, true)
	require.NoError(t, err)
	defer node.Shutdown()

	took := make(chan struct{}, 1)
	node.OnTakeLeadership(func() {
		select {
		case took <- struct{}{}:
		default:
		}
	})

	select {
	case <-took:
	case <-time.After(5 * time.Second):
		t.Fatal("on-take-leadership callback never fired")
	}
}

func TestApplyFailsBeforeLeadershipEstablished(t *testing.T) {
	exec := &recordingExecutor{}
	cfg := Config{NodeID: "node-1", BindAddr: freeLoopbackAddr(t), DataDir: t.TempDir()}

	// bootstrap=false: this node never forms or joins a cluster, so it
	// can never become leader and Apply must fail, not hang.
	node, err := Start(cfg, exec, false)
	require.NoError(t, err)
	defer node.Shutdown()

	cmd, err := NewCommand(OpCreateProject, CreateProjectPayload{Name: "demo"})
	require.NoError(t, err)

	_, err = node.Apply(cmd, time.Second)
	require.Error(t, err)
}
