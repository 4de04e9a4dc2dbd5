// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/antgroup/lineage/internal/jsonpatch"
	"github.com/antgroup/lineage/internal/pattern"
	"github.com/antgroup/lineage/internal/textdiff"
)

// DiffKind tags one entry of a Diff result (spec.md §4.C: "emits
// add/modify(patch)/remove/rename semantics").
type DiffKind string

const (
	DiffAdd    DiffKind = "add"
	DiffModify DiffKind = "modify"
	DiffRemove DiffKind = "remove"
	DiffRename DiffKind = "rename"
)

// FileDiff is one changed path between two revisions. For a modify,
// exactly one of JSONPatch/TextPatch is set, depending on Type.
type FileDiff struct {
	Kind      DiffKind
	Path      string
	NewPath   string // set only for DiffRename
	Type      EntryType
	JSONPatch []byte // safe-replace-form JSON patch document
	TextPatch string // unified diff text
}

// flattenFiles walks root and collects every file (not directory)
// keyed by its absolute path.
func flattenFiles(root *treeNode) map[string]*treeNode {
	m := map[string]*treeNode{}
	root.walk(func(p string, n *treeNode) {
		if !n.isDir() {
			m[p] = n
		}
	})
	return m
}

// Diff walks the trees at from and to and reports every path matching
// pat whose content differs (spec.md §4.C, "Diff and history").
// Rename detection is content-identity based: a path that disappears
// and a path that appears with byte-identical canonical content (an
// Open Question the spec leaves unresolved — see DESIGN.md) are
// reported as one rename entry instead of a remove paired with an add.
func (e *Engine) Diff(ctx context.Context, from, to int64, pat *pattern.PathPattern) ([]FileDiff, error) {
	fromAbs, err := e.resolveRevision(from)
	if err != nil {
		return nil, err
	}
	toAbs, err := e.resolveRevision(to)
	if err != nil {
		return nil, err
	}

	fromTreeHash, err := e.treeAt(ctx, fromAbs)
	if err != nil {
		return nil, err
	}
	toTreeHash, err := e.treeAt(ctx, toAbs)
	if err != nil {
		return nil, err
	}

	fromRoot, err := loadTree(ctx, e.store, fromTreeHash)
	if err != nil {
		return nil, err
	}
	toRoot, err := loadTree(ctx, e.store, toTreeHash)
	if err != nil {
		return nil, err
	}

	fromFiles := flattenFiles(fromRoot)
	toFiles := flattenFiles(toRoot)

	paths := make(map[string]struct{}, len(fromFiles)+len(toFiles))
	for p := range fromFiles {
		paths[p] = struct{}{}
	}
	for p := range toFiles {
		paths[p] = struct{}{}
	}

	var adds, removes []string
	var modifies []FileDiff
	for p := range paths {
		if !pat.Match(p) {
			continue
		}
		fn, okFrom := fromFiles[p]
		tn, okTo := toFiles[p]
		switch {
		case okFrom && okTo:
			if bytes.Equal(fn.content, tn.content) {
				continue
			}
			fd, err := buildModifyDiff(p, fn, tn)
			if err != nil {
				return nil, err
			}
			modifies = append(modifies, fd)
		case okTo && !okFrom:
			adds = append(adds, p)
		case okFrom && !okTo:
			removes = append(removes, p)
		}
	}
	sort.Strings(adds)
	sort.Strings(removes)

	renames, remainingAdds, remainingRemoves := pairRenames(removes, adds, fromFiles, toFiles)

	result := make([]FileDiff, 0, len(renames)+len(remainingAdds)+len(remainingRemoves)+len(modifies))
	result = append(result, renames...)
	for _, p := range remainingRemoves {
		result = append(result, FileDiff{Kind: DiffRemove, Path: p, Type: fromFiles[p].typ})
	}
	for _, p := range remainingAdds {
		result = append(result, FileDiff{Kind: DiffAdd, Path: p, Type: toFiles[p].typ})
	}
	result = append(result, modifies...)

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func pairRenames(removes, adds []string, fromFiles, toFiles map[string]*treeNode) (renames []FileDiff, remainingAdds, remainingRemoves []string) {
	usedAdds := make(map[string]bool, len(adds))
	for _, rp := range removes {
		rn := fromFiles[rp]
		matched := ""
		for _, ap := range adds {
			if usedAdds[ap] {
				continue
			}
			an := toFiles[ap]
			if an.typ == rn.typ && bytes.Equal(an.content, rn.content) {
				matched = ap
				break
			}
		}
		if matched == "" {
			remainingRemoves = append(remainingRemoves, rp)
			continue
		}
		usedAdds[matched] = true
		renames = append(renames, FileDiff{Kind: DiffRename, Path: rp, NewPath: matched, Type: rn.typ})
	}
	for _, ap := range adds {
		if !usedAdds[ap] {
			remainingAdds = append(remainingAdds, ap)
		}
	}
	return renames, remainingAdds, remainingRemoves
}

func buildModifyDiff(path string, from, to *treeNode) (FileDiff, error) {
	fd := FileDiff{Kind: DiffModify, Path: path, Type: to.typ}
	if to.typ == TypeJSON {
		patch, err := buildSafeReplaceJSONPatch(from.content, to.content)
		if err != nil {
			return FileDiff{}, err
		}
		fd.JSONPatch = patch
		return fd, nil
	}
	fd.TextPatch = textdiff.Diff(string(from.content), string(to.content)).String()
	return fd, nil
}

// buildSafeReplaceJSONPatch emits one op per top-level key that
// differs between old and new (spec.md §4.C: "safe-replace form,
// preserving old values"), falling back to a single whole-document
// safeReplace when either side isn't a JSON object — a one-level
// diff, not a full recursive tree diff, which keeps the normalizing
// push's "preview diff" cheap to compute and still lets a conflicting
// concurrent edit to an unrelated key apply cleanly.
func buildSafeReplaceJSONPatch(oldBytes, newBytes []byte) ([]byte, error) {
	var oldVal, newVal interface{}
	if err := json.Unmarshal(oldBytes, &oldVal); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(newBytes, &newVal); err != nil {
		return nil, err
	}

	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})

	var ops []jsonpatch.Op
	if oldIsMap && newIsMap {
		keys := make(map[string]struct{}, len(oldMap)+len(newMap))
		for k := range oldMap {
			keys[k] = struct{}{}
		}
		for k := range newMap {
			keys[k] = struct{}{}
		}
		sortedKeys := make([]string, 0, len(keys))
		for k := range keys {
			sortedKeys = append(sortedKeys, k)
		}
		sort.Strings(sortedKeys)

		for _, k := range sortedKeys {
			ov, inOld := oldMap[k]
			nv, inNew := newMap[k]
			pointer := "/" + escapePointerToken(k)
			switch {
			case inOld && !inNew:
				ops = append(ops, jsonpatch.Op{Op: "remove", Path: pointer})
			case !inOld && inNew:
				raw, err := json.Marshal(nv)
				if err != nil {
					return nil, err
				}
				ops = append(ops, jsonpatch.Op{Op: "add", Path: pointer, Value: raw})
			case inOld && inNew && !reflect.DeepEqual(ov, nv):
				oldRaw, err := json.Marshal(ov)
				if err != nil {
					return nil, err
				}
				newRaw, err := json.Marshal(nv)
				if err != nil {
					return nil, err
				}
				ops = append(ops, jsonpatch.Op{Op: "safeReplace", Path: pointer, OldValue: oldRaw, Value: newRaw})
			}
		}
	} else {
		oldRaw, err := json.Marshal(oldVal)
		if err != nil {
			return nil, err
		}
		newRaw, err := json.Marshal(newVal)
		if err != nil {
			return nil, err
		}
		ops = append(ops, jsonpatch.Op{Op: "safeReplace", Path: "", OldValue: oldRaw, Value: newRaw})
	}
	return json.Marshal(ops)
}

func escapePointerToken(k string) string {
	k = strings.ReplaceAll(k, "~", "~0")
	k = strings.ReplaceAll(k, "/", "~1")
	return k
}
