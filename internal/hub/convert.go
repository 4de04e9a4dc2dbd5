// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"fmt"

	"github.com/antgroup/lineage/internal/cluster"
	"github.com/antgroup/lineage/internal/object"
	"github.com/antgroup/lineage/internal/repo"
)

func objectSignature(s cluster.Signature) object.Signature {
	return object.Signature{Name: s.Name, Email: s.Email, When: s.When}
}

func objectMarkup(m string) object.Markup {
	switch object.Markup(m) {
	case object.MarkupMarkdown:
		return object.MarkupMarkdown
	default:
		return object.MarkupPlaintext
	}
}

func repoChangeOp(op string) (repo.ChangeOp, error) {
	switch repo.ChangeOp(op) {
	case repo.OpUpsertJSON, repo.OpUpsertText, repo.OpApplyJSONPatch, repo.OpApplyTextPatch, repo.OpRemove, repo.OpRename:
		return repo.ChangeOp(op), nil
	default:
		return "", fmt.Errorf("hub: unrecognized change op %q", op)
	}
}

func repoChanges(payloads []cluster.ChangePayload) ([]repo.Change, error) {
	changes := make([]repo.Change, 0, len(payloads))
	for _, p := range payloads {
		op, err := repoChangeOp(p.Op)
		if err != nil {
			return nil, err
		}
		changes = append(changes, repo.Change{
			Op:      op,
			Path:    p.Path,
			NewPath: p.NewPath,
			Content: p.Content,
			Patch:   p.Patch,
		})
	}
	return changes, nil
}

func changePayloads(changes []repo.Change) []cluster.ChangePayload {
	payloads := make([]cluster.ChangePayload, 0, len(changes))
	for _, c := range changes {
		payloads = append(payloads, cluster.ChangePayload{
			Op:      string(c.Op),
			Path:    c.Path,
			NewPath: c.NewPath,
			Content: c.Content,
			Patch:   c.Patch,
		})
	}
	return payloads
}
