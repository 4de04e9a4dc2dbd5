// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/pattern"
	"github.com/antgroup/lineage/internal/repo"
)

// transformApplyTimeout bounds how long Transform waits for its
// derived push_as_is command to replicate, the same budget a direct
// caller of Node.Apply would be expected to use for a push.
const transformApplyTimeout = 10 * time.Second

// PushResult is what a push command returns through Execute: the new
// commit's revision plus, for normalizing_push, the change list as it
// was actually applied after canonicalization (spec.md §4.C:
// "normalizing_push ... emits the normalized set as part of the
// result").
type PushResult struct {
	Revision          int64                   `json:"revision"`
	NormalizedChanges []cluster.ChangePayload `json:"normalized_changes,omitempty"`
}

// executePush handles both OpNormalizingPush and OpPushAsIs. The
// commitLocked algorithm (internal/repo.Engine.Commit) already
// canonicalizes every change unconditionally before comparing it
// against the existing tree, so the two ops differ only in whether
// Hub itself pre-canonicalizes the payload's Content before handing
// it to the engine, and whether it reports back what it did:
// push_as_is submits the caller's bytes untouched and never reports a
// normalized set; normalizing_push canonicalizes first and always
// returns what it ended up committing, even when that happens to be
// byte-identical to the input.
func (h *Hub) executePush(ctx context.Context, cmd cluster.Command) (any, error) {
	var p cluster.PushPayload
	if err := json.Unmarshal(cmd.Data, &p); err != nil {
		return nil, fmt.Errorf("hub: decode push: %w", err)
	}

	if limit := h.maxPushPayload(); limit > 0 && int64(len(cmd.Data)) > limit {
		return nil, dogmaerr.NewErrTooLargeRequest(int64(len(cmd.Data)), limit)
	}

	if reservedRepositories[repoKey(p.Project, p.Repository)] {
		return nil, dogmaerr.NewErrInvalidPush(fmt.Sprintf(
			"%s/%s is a reserved repository and accepts no pushed content", p.Project, p.Repository))
	}

	changes, err := repoChanges(p.Changes)
	if err != nil {
		return nil, err
	}

	if cmd.Op == cluster.OpNormalizingPush {
		changes, err = canonicalizeChanges(changes)
		if err != nil {
			return nil, err
		}
	}

	rh, err := h.open(ctx, p.Project, p.Repository)
	if err != nil {
		return nil, err
	}

	commit, err := rh.engine.Commit(ctx, repo.CommitRequest{
		BaseRevision: p.BaseRevision,
		Author:       objectSignature(p.Author),
		Committer:    objectSignature(p.Committer),
		Summary:      p.Summary,
		Detail:       p.Detail,
		Markup:       objectMarkup(p.Markup),
		Changes:      changes,
		AllowEmpty:   p.AllowEmpty,
	})
	if err != nil {
		return nil, err
	}

	result := PushResult{Revision: commit.Revision}
	if cmd.Op == cluster.OpNormalizingPush {
		result.NormalizedChanges = changePayloads(changes)
	}
	return result, nil
}

// canonicalizeChanges rewrites each upsert's Content to its
// canonical form, the way internal/repo.applyChange already would
// when committing — done here too so normalizing_push's reported
// result reflects exactly what normalizing_push promises, independent
// of the engine's own internal canonicalization step.
func canonicalizeChanges(changes []repo.Change) ([]repo.Change, error) {
	out := make([]repo.Change, len(changes))
	for i, c := range changes {
		switch c.Op {
		case repo.OpUpsertJSON:
			canonical, err := repo.CanonicalizeJSON(c.Content)
			if err != nil {
				return nil, err
			}
			c.Content = canonical
		case repo.OpUpsertText:
			c.Content = repo.CanonicalizeText(c.Content)
		}
		out[i] = c
	}
	return out, nil
}

// Transform implements spec.md §6's transform command: it is never
// replicated as OpTransform, since its input is a closure over the
// current tree and raft can only replicate data, not code. Instead
// the leader runs fn locally against the base revision's files,
// collects the resulting changes, and submits them as an ordinary
// push_as_is command — by the time anything reaches the log it is
// already concrete data like any other push, so every replica applies
// it identically.
func (h *Hub) Transform(ctx context.Context, node *cluster.Node, project, repository string, baseRevision int64, pat *pattern.PathPattern, author, committer cluster.Signature, summary, detail, markup string, fn func(path string, content []byte) ([]byte, error)) (any, error) {
	rh, err := h.open(ctx, project, repository)
	if err != nil {
		return nil, err
	}
	entries, err := rh.engine.Find(ctx, baseRevision, pat, repo.FindOptions{FetchContent: true})
	if err != nil {
		return nil, err
	}

	var changes []cluster.ChangePayload
	for _, e := range entries {
		if e.Type == repo.TypeDirectory {
			continue
		}
		next, err := fn(e.Path, e.Content)
		if err != nil {
			return nil, fmt.Errorf("hub: transform %s: %w", e.Path, err)
		}
		if next == nil {
			continue
		}
		op := string(repo.OpUpsertText)
		if repo.InferType(e.Path) == repo.TypeJSON {
			op = string(repo.OpUpsertJSON)
		}
		changes = append(changes, cluster.ChangePayload{Op: op, Path: e.Path, Content: next})
	}
	if len(changes) == 0 {
		return PushResult{Revision: rh.engine.Head()}, nil
	}

	payload := cluster.PushPayload{
		Project: project, Repository: repository, BaseRevision: baseRevision,
		Author: author, Committer: committer, Summary: summary, Detail: detail, Markup: markup,
		Changes: changes,
	}
	cmd, err := cluster.NewCommand(cluster.OpPushAsIs, payload)
	if err != nil {
		return nil, err
	}
	return node.Apply(cmd, transformApplyTimeout)
}
