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

// executeSession handles the session and cluster-status command kinds
// spec.md §6/§4.F name. Full collaborator authentication and session
// lifecycle management is explicitly out of scope (spec.md line 12),
// but the command kinds themselves are part of the replicated
// protocol, so every replica still needs a deterministic handler for
// them: this is the minimal form that satisfies that, not a
// placeholder for a fuller implementation to come.
func (h *Hub) executeSession(ctx context.Context, cmd cluster.Command) (any, error) {
	switch cmd.Op {
	case cluster.OpCreateSession:
		var p cluster.CreateSessionPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return nil, fmt.Errorf("hub: decode create_session: %w", err)
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, exists := h.sessions[p.SessionID]; exists {
			return nil, dogmaerr.ErrEntryExists
		}
		h.sessions[p.SessionID] = p.Subject
		return nil, nil

	case cluster.OpRemoveSession:
		var p cluster.SessionIDPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return nil, fmt.Errorf("hub: decode remove_session: %w", err)
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions, p.SessionID)
		return nil, nil

	case cluster.OpUpdateServerStatus:
		var p cluster.UpdateServerStatusPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return nil, fmt.Errorf("hub: decode update_server_status: %w", err)
		}
		h.setReadOnly(p.ReadOnly)
		return nil, nil

	default:
		return nil, fmt.Errorf("hub: unrecognized session command %q", cmd.Op)
	}
}

// SessionSubject reports the subject a live session ID was created
// for, for callers authenticating an inbound request against
// previously-replicated session state.
func (h *Hub) SessionSubject(sessionID string) (subject string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subject, ok = h.sessions[sessionID]
	return subject, ok
}
