// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures one cluster node. Grounded on cuemby-warren's
// pkg/manager.Manager.Bootstrap/Join: a local ID, a bind address, and
// a data directory holding the raft log/stable/snapshot stores.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node is one member of the replicated command log. It owns a
// hashicorp/raft instance configured for the teacher's own fast-
// failover timeouts, and exposes the narrower "external collaborator"
// surface spec.md §6 asks for (leader election + replicated log)
// rather than the whole raft.Raft API.
type Node struct {
	cfg  Config
	raft *raft.Raft
	fsm  *FSM

	leadershipMu sync.Mutex
	onTake       []func()
	onRelease    []func()
}

// Start brings up this node's raft instance and, if bootstrap is true,
// forms a brand-new single-node cluster with this node as the only
// voter (cuemby-warren's Manager.Bootstrap). Joining an existing
// cluster (cuemby-warren's Manager.Join) is the caller's
// responsibility once this node's transport address is known to the
// leader, via AddVoter on the leader's Node.
func Start(cfg Config, executor Executor, bootstrap bool) (*Node, error) {
	fsm := NewFSM(executor)

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	// Faster failure detection than raft's WAN-oriented defaults,
	// matching cuemby-warren's own LAN/edge tuning.
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("cluster: create raft: %w", err)
	}

	if bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("cluster: bootstrap cluster: %w", err)
		}
	}

	n := &Node{cfg: cfg, raft: r, fsm: fsm}
	go n.watchLeadership()
	return n, nil
}

// watchLeadership relays raft's LeaderCh into the registered
// on-take/on-release callbacks (spec.md §6: "on_take_leadership(fn),
// on_release_leadership(fn)").
func (n *Node) watchLeadership() {
	for isLeader := range n.raft.LeaderCh() {
		n.leadershipMu.Lock()
		callbacks := n.onTake
		if !isLeader {
			callbacks = n.onRelease
		}
		n.leadershipMu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	}
}

// OnTakeLeadership registers fn to run whenever this node becomes
// leader. Safe to call before or after Start's background watcher is
// running.
func (n *Node) OnTakeLeadership(fn func()) {
	n.leadershipMu.Lock()
	defer n.leadershipMu.Unlock()
	n.onTake = append(n.onTake, fn)
}

// OnReleaseLeadership registers fn to run whenever this node stops
// being leader.
func (n *Node) OnReleaseLeadership(fn func()) {
	n.leadershipMu.Lock()
	defer n.leadershipMu.Unlock()
	n.onRelease = append(n.onRelease, fn)
}

// IsLeader reports whether this node currently believes it is leader.
func (n *Node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// ReplicaID returns the CRC-32 checksum of this node's raft server ID
// string, reinterpreted as an int32 (spec.md §6's `replica_id() -> i32`).
// Distinct server IDs can map to the same value, and the value can be
// negative.
func (n *Node) ReplicaID() int32 {
	return int32(crc32Of(n.cfg.NodeID))
}

// AddVoter adds a new node to the cluster; only the leader may call
// this successfully (cuemby-warren's Manager.AddVoter).
func (n *Node) AddVoter(nodeID, address string) error {
	return n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// RemoveServer removes a node from the cluster.
func (n *Node) RemoveServer(nodeID string) error {
	return n.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// Apply submits cmd to the replicated log and blocks until it has been
// applied (on the leader) or rejects with raft.ErrNotLeader if this
// node isn't currently leader — spec.md §4.F step 1-2: "only the
// leader accepts mutating commands; followers redirect or reject".
func (n *Node) Apply(cmd Command, timeout time.Duration) (any, error) {
	data, err := marshalCommand(cmd)
	if err != nil {
		return nil, err
	}
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, err
	}
	result, ok := future.Response().(applyResult)
	if !ok {
		return nil, fmt.Errorf("cluster: unexpected FSM response type %T", future.Response())
	}
	return result.Value, result.Err
}

// Shutdown stops this node's raft participation.
func (n *Node) Shutdown() error {
	return n.raft.Shutdown().Error()
}

func marshalCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// crc32Of folds a node ID string into a stable int32, since raft's own
// ServerID is an opaque string and spec.md's replica_id wants a small
// integer.
func crc32Of(s string) uint32 {
	return crc32.ChecksumIEEE([]byte(s))
}
