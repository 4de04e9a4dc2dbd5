// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"

	"github.com/antgroup/lineage/internal/dogmaerr"
	"github.com/antgroup/lineage/internal/jsonpatch"
	"github.com/antgroup/lineage/internal/textdiff"
)

// ChangeOp tags a Change's edit semantics (spec.md §3, §4.C).
type ChangeOp string

const (
	OpUpsertJSON     ChangeOp = "upsert_json"
	OpUpsertText     ChangeOp = "upsert_text"
	OpApplyJSONPatch ChangeOp = "apply_json_patch"
	OpApplyTextPatch ChangeOp = "apply_text_patch"
	OpRemove         ChangeOp = "remove"
	OpRename         ChangeOp = "rename"
)

// Change is one typed edit intent in a commit's change list. Path is
// the target for every op except rename, where it is the source and
// NewPath the destination. Content carries the new value for
// upsert_json/upsert_text; Patch carries the JSON Patch document
// (apply_json_patch) or unified diff text (apply_text_patch).
type Change struct {
	Op      ChangeOp
	Path    string
	NewPath string
	Content []byte
	Patch   []byte
}

// applyChange mutates root in place for one change, reporting whether
// the change had any effect — upsert_json/upsert_text are no-ops when
// the canonicalized value equals what's already there (spec.md §4.C).
func applyChange(root *treeNode, c Change) (bool, error) {
	if err := ValidatePath(c.Path); err != nil {
		return false, err
	}
	switch c.Op {
	case OpUpsertJSON:
		return applyUpsertJSON(root, c)
	case OpUpsertText:
		return applyUpsertText(root, c)
	case OpApplyJSONPatch:
		return applyJSONPatchChange(root, c)
	case OpApplyTextPatch:
		return applyTextPatchChange(root, c)
	case OpRemove:
		return applyRemove(root, c)
	case OpRename:
		return applyRename(root, c)
	default:
		return false, dogmaerr.NewErrChangeConflict(c.Path, "unknown change operation "+string(c.Op))
	}
}

func applyUpsertJSON(root *treeNode, c Change) (bool, error) {
	if InferType(c.Path) != TypeJSON {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "upsert_json targets a non-json path")
	}
	canonical, err := CanonicalizeJSON(c.Content)
	if err != nil {
		return false, err
	}
	if old, ok := root.get(c.Path); ok && !old.isDir() {
		equal, err := jsonEqual(old.content, canonical)
		if err != nil {
			return false, err
		}
		if equal {
			return false, nil
		}
	}
	if err := root.set(c.Path, newFileNode(TypeJSON, canonical)); err != nil {
		return false, err
	}
	return true, nil
}

func applyUpsertText(root *treeNode, c Change) (bool, error) {
	if InferType(c.Path) == TypeJSON {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "upsert_text targets a json path")
	}
	typ := InferType(c.Path)
	canonical := CanonicalizeText(c.Content)
	if old, ok := root.get(c.Path); ok && !old.isDir() && bytes.Equal(old.content, canonical) {
		return false, nil
	}
	if err := root.set(c.Path, newFileNode(typ, canonical)); err != nil {
		return false, err
	}
	return true, nil
}

func applyJSONPatchChange(root *treeNode, c Change) (bool, error) {
	if InferType(c.Path) != TypeJSON {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "apply_json_patch targets a non-json path")
	}
	patch, err := jsonpatch.Parse(c.Patch)
	if err != nil {
		return false, err
	}
	var old []byte
	if existing, ok := root.get(c.Path); ok {
		if existing.isDir() {
			return false, dogmaerr.NewErrChangeConflict(c.Path, "path is a directory")
		}
		old = existing.content
	}
	next, err := jsonpatch.Apply(old, patch)
	if err != nil {
		return false, err
	}
	canonical, err := CanonicalizeJSON(next)
	if err != nil {
		return false, err
	}
	if old != nil {
		equal, err := jsonEqual(old, canonical)
		if err != nil {
			return false, err
		}
		if equal {
			return false, nil
		}
	}
	if err := root.set(c.Path, newFileNode(TypeJSON, canonical)); err != nil {
		return false, err
	}
	return true, nil
}

func applyTextPatchChange(root *treeNode, c Change) (bool, error) {
	if InferType(c.Path) == TypeJSON {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "apply_text_patch targets a json path")
	}
	patch, err := textdiff.Parse(string(c.Patch))
	if err != nil {
		return false, err
	}
	typ := InferType(c.Path)
	var oldText string
	existing, ok := root.get(c.Path)
	if ok {
		if existing.isDir() {
			return false, dogmaerr.NewErrChangeConflict(c.Path, "path is a directory")
		}
		oldText = string(existing.content)
		typ = existing.typ
	}
	newText, err := textdiff.Apply(oldText, patch)
	if err != nil {
		return false, err
	}
	canonical := CanonicalizeText([]byte(newText))
	if ok && bytes.Equal(existing.content, canonical) {
		return false, nil
	}
	if err := root.set(c.Path, newFileNode(typ, canonical)); err != nil {
		return false, err
	}
	return true, nil
}

func applyRemove(root *treeNode, c Change) (bool, error) {
	if _, ok := root.get(c.Path); !ok {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "remove target does not exist")
	}
	if err := root.remove(c.Path); err != nil {
		return false, err
	}
	return true, nil
}

func applyRename(root *treeNode, c Change) (bool, error) {
	if err := ValidatePath(c.NewPath); err != nil {
		return false, err
	}
	src, ok := root.get(c.Path)
	if !ok {
		return false, dogmaerr.NewErrChangeConflict(c.Path, "rename source does not exist")
	}
	if _, exists := root.get(c.NewPath); exists {
		return false, dogmaerr.NewErrChangeConflict(c.NewPath, "rename target already exists")
	}
	if err := root.remove(c.Path); err != nil {
		return false, err
	}
	if err := root.set(c.NewPath, src); err != nil {
		return false, err
	}
	return true, nil
}
