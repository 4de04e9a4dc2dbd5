// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/dogmaerr"
)

// systemName/systemEmail are stamped onto every force-push's wrapped
// payload, overriding whatever author/committer name and email the
// caller supplied (spec.md §4.F: "force-push wraps
// normalizing-push/push-as-is with author = system"). The When
// timestamp is left as the caller supplied it rather than reset to
// time.Now(): Execute must stay a deterministic function of cmd alone
// so every replica commits the identical, content-addressed result.
const (
	systemName  = "system"
	systemEmail = "system@lineage"
)

// Execute implements cluster.Executor. It runs identically on the
// leader (from raft's apply loop, while Node.Apply waits on the
// result) and on every
// follower replaying the same log entry, so every branch here must be
// a deterministic function of cmd alone.
func (h *Hub) Execute(ctx context.Context, cmd cluster.Command) (any, error) {
	// Every mutating command is gated on read-only mode except
	// force_push itself (spec.md §7: "server in read-only mode and
	// command is not a force-push"); force_push's wrapped push reaches
	// executePush through executeBypassingReadOnly, never back through
	// this switch.
	if cmd.Op != cluster.OpForcePush && h.readOnlyMode() {
		return nil, dogmaerr.ErrReadOnly
	}

	switch cmd.Op {
	case cluster.OpForcePush:
		var payload cluster.ForcePushPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return nil, fmt.Errorf("hub: decode force_push: %w", err)
		}
		return h.executeBypassingReadOnly(ctx, payload.Wrapped)

	case cluster.OpCreateProject, cluster.OpRemoveProject, cluster.OpPurgeProject, cluster.OpUnremoveProject,
		cluster.OpCreateRepository, cluster.OpRemoveRepository, cluster.OpPurgeRepository, cluster.OpUnremoveRepository:
		return h.executeCatalog(ctx, cmd)

	case cluster.OpNormalizingPush, cluster.OpPushAsIs:
		return h.executePush(ctx, cmd)

	case cluster.OpCreateSession, cluster.OpRemoveSession, cluster.OpUpdateServerStatus:
		return h.executeSession(ctx, cmd)

	default:
		return nil, fmt.Errorf("hub: unrecognized command %q", cmd.Op)
	}
}

// executeBypassingReadOnly dispatches wrapped without the read-only
// check OpNormalizingPush/OpPushAsIs otherwise apply (spec.md §4.F:
// "force_push ... is the one mutation accepted while the cluster is
// read-only"). Its payload must be exactly one of those two command
// types, and its author/committer is always overridden with the
// system identity regardless of what the caller supplied, so a
// force-push can never be mistaken for an ordinary, attributable push.
func (h *Hub) executeBypassingReadOnly(ctx context.Context, wrapped cluster.Command) (any, error) {
	if wrapped.Op != cluster.OpNormalizingPush && wrapped.Op != cluster.OpPushAsIs {
		return nil, fmt.Errorf("hub: force_push may only wrap normalizing_push or push_as_is, got %q", wrapped.Op)
	}

	var p cluster.PushPayload
	if err := json.Unmarshal(wrapped.Data, &p); err != nil {
		return nil, fmt.Errorf("hub: decode force_push payload: %w", err)
	}
	p.Author.Name, p.Author.Email = systemName, systemEmail
	p.Committer.Name, p.Committer.Email = systemName, systemEmail

	stamped, err := cluster.NewCommand(wrapped.Op, p)
	if err != nil {
		return nil, fmt.Errorf("hub: re-encode force_push payload: %w", err)
	}
	return h.executePush(ctx, stamped)
}
