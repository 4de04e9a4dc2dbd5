// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"encoding/json"
	"time"
)

// Op identifies a command kind accepted by the command executor
// (spec.md §4.F).
type Op string

const (
	OpCreateProject   Op = "create_project"
	OpRemoveProject   Op = "remove_project"
	OpPurgeProject    Op = "purge_project"
	OpUnremoveProject Op = "unremove_project"

	OpCreateRepository   Op = "create_repository"
	OpRemoveRepository   Op = "remove_repository"
	OpPurgeRepository    Op = "purge_repository"
	OpUnremoveRepository Op = "unremove_repository"

	OpNormalizingPush Op = "normalizing_push"
	OpPushAsIs        Op = "push_as_is"
	OpTransform       Op = "transform"

	OpCreateSession      Op = "create_session"
	OpRemoveSession      Op = "remove_session"
	OpUpdateServerStatus Op = "update_server_status"

	// OpForcePush wraps another allowed command and bypasses read-only
	// mode (spec.md §4.F).
	OpForcePush Op = "force_push"
)

// Command is one entry in the replicated log: an operation name plus
// its opaque, operation-specific payload. Grounded on cuemby-warren's
// WarrenFSM Command{Op, Data json.RawMessage} shape, generalized from
// a fixed node/service/task/secret/volume switch to this system's
// project/repository/push/session/status command set.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data"`
}

// NewCommand marshals payload into a Command of the given op.
func NewCommand(op Op, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Data: data}, nil
}

// ForcePushPayload is OpForcePush's Data: the wrapped command plus the
// fact that it bypasses read-only mode.
type ForcePushPayload struct {
	Wrapped Command `json:"wrapped"`
}

// CreateProjectPayload is OpCreateProject's Data.
type CreateProjectPayload struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Name        string `json:"name"`
}

// ProjectNamePayload is the Data shape for remove/purge/unremove
// project commands: they carry only the name being transitioned.
type ProjectNamePayload struct {
	Name string `json:"name"`
}

// CreateRepositoryPayload is OpCreateRepository's Data.
type CreateRepositoryPayload struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Project     string `json:"project"`
	Name        string `json:"name"`
}

// RepositoryNamePayload is the Data shape for remove/purge/unremove
// repository commands.
type RepositoryNamePayload struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

// Signature is the wire form of a commit author/committer. cluster
// deliberately carries its own copy of this shape rather than
// importing internal/object: a replicated command's encoding must
// stay stable independent of that package's internal representation,
// and every replica decodes the identical bytes regardless of which
// packages it happens to import.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

// ChangePayload is the wire form of one internal/repo.Change.
type ChangePayload struct {
	Op      string `json:"op"`
	Path    string `json:"path"`
	NewPath string `json:"new_path,omitempty"`
	Content []byte `json:"content,omitempty"`
	Patch   []byte `json:"patch,omitempty"`
}

// PushPayload is OpNormalizingPush's and OpPushAsIs's Data (spec.md
// §4.C/§6: base revision, author, committer, summary, detail, markup,
// change list, allow-empty flag, all addressed at one project/
// repository pair).
type PushPayload struct {
	Project      string          `json:"project"`
	Repository   string          `json:"repository"`
	BaseRevision int64           `json:"base_revision"`
	Author       Signature       `json:"author"`
	Committer    Signature       `json:"committer"`
	Summary      string          `json:"summary"`
	Detail       string          `json:"detail"`
	Markup       string          `json:"markup"`
	Changes      []ChangePayload `json:"changes"`
	AllowEmpty   bool            `json:"allow_empty"`
}

// CreateSessionPayload is OpCreateSession's Data.
type CreateSessionPayload struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
}

// SessionIDPayload is the Data shape for remove_session.
type SessionIDPayload struct {
	SessionID string `json:"session_id"`
}

// UpdateServerStatusPayload is OpUpdateServerStatus's Data: the single
// piece of cluster-wide mutable status this system replicates outside
// the catalog/repository state (spec.md §4.F's read-only toggle).
type UpdateServerStatusPayload struct {
	ReadOnly bool `json:"read_only"`
}
