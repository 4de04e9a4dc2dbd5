// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package jsonpatch applies JSON Patch documents to a parsed JSON tree
// for the apply_json_patch change kind (spec.md §4.C). Alongside the
// RFC 6902 operations it supports the spec's "safeReplace" op, which
// only takes effect when the value currently at path equals oldValue —
// the building block diff() uses to emit patches that "preserve old
// values" (spec.md §4.C, Diff and history).
//
// Pointer navigation is done directly over the decoded tree rather
// than through github.com/tidwall/gjson/sjson: those libraries index
// raw JSON text by query expression, not by exact RFC 6901 pointer,
// and offer no primitive for a conditional (test-then-set) write —
// exactly what safeReplace needs. gjson/sjson are used instead in
// internal/repo for JSON-path get queries and merge-files, where their
// text-indexed model fits.
package jsonpatch

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// Op is a single JSON Patch operation.
type Op struct {
	Op       string          `json:"op"`
	Path     string          `json:"path"`
	From     string          `json:"from,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
}

// Patch is an ordered list of operations.
type Patch struct {
	Ops []Op
}

// Parse decodes a JSON Patch document (a JSON array of operations).
func Parse(raw []byte) (*Patch, error) {
	var ops []Op
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, dogmaerr.NewErrChangeConflict("", "malformed json patch: "+err.Error())
	}
	return &Patch{Ops: ops}, nil
}

// Apply applies patch to old, which is treated as JSON null when
// empty, per spec.md §4.C ("apply patch to old tree (treated as JSON
// null if absent)"). It returns the new canonical-ready JSON bytes.
func Apply(old []byte, patch *Patch) ([]byte, error) {
	var doc interface{}
	if len(old) > 0 {
		if err := json.Unmarshal(old, &doc); err != nil {
			return nil, dogmaerr.NewErrChangeConflict("", "base document is not valid json: "+err.Error())
		}
	}
	for _, op := range patch.Ops {
		var err error
		doc, err = applyOp(doc, op)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(doc)
}

func applyOp(doc interface{}, op Op) (interface{}, error) {
	switch op.Op {
	case "add":
		return setAtPointer(doc, op.Path, mustDecode(op.Value), true)
	case "remove":
		return removeAtPointer(doc, op.Path)
	case "replace":
		return setAtPointer(doc, op.Path, mustDecode(op.Value), false)
	case "safeReplace":
		current, ok := getAtPointer(doc, op.Path)
		if !ok {
			current = nil
		}
		if !reflect.DeepEqual(current, mustDecode(op.OldValue)) {
			return nil, dogmaerr.NewErrChangeConflict(op.Path, "safeReplace: value at path no longer matches oldValue")
		}
		return setAtPointer(doc, op.Path, mustDecode(op.Value), false)
	case "test":
		current, ok := getAtPointer(doc, op.Path)
		if !ok || !reflect.DeepEqual(current, mustDecode(op.Value)) {
			return nil, dogmaerr.NewErrChangeConflict(op.Path, "test operation failed")
		}
		return doc, nil
	case "move":
		val, ok := getAtPointer(doc, op.From)
		if !ok {
			return nil, dogmaerr.NewErrChangeConflict(op.From, "move source does not exist")
		}
		doc, err := removeAtPointer(doc, op.From)
		if err != nil {
			return nil, err
		}
		return setAtPointer(doc, op.Path, val, true)
	case "copy":
		val, ok := getAtPointer(doc, op.From)
		if !ok {
			return nil, dogmaerr.NewErrChangeConflict(op.From, "copy source does not exist")
		}
		return setAtPointer(doc, op.Path, val, true)
	default:
		return nil, dogmaerr.NewErrChangeConflict(op.Path, "unsupported json patch op: "+op.Op)
	}
}

func mustDecode(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	_ = json.Unmarshal(raw, &v)
	return v
}

// tokens splits an RFC 6901 JSON pointer into unescaped reference
// tokens. The root pointer "" yields no tokens.
func tokens(pointer string) []string {
	if pointer == "" || pointer == "/" {
		return nil
	}
	pointer = strings.TrimPrefix(pointer, "/")
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		parts[i] = p
	}
	return parts
}

func getAtPointer(doc interface{}, pointer string) (interface{}, bool) {
	toks := tokens(pointer)
	cur := doc
	for _, t := range toks {
		switch c := cur.(type) {
		case map[string]interface{}:
			v, ok := c[t]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(t)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setAtPointer sets the value at pointer, creating intermediate
// containers as needed. When allowAppend is true ("add" semantics),
// the "-" token appends to a list.
func setAtPointer(doc interface{}, pointer string, value interface{}, allowAppend bool) (interface{}, error) {
	toks := tokens(pointer)
	if len(toks) == 0 {
		return value, nil
	}
	return setRecursive(doc, toks, value, allowAppend, pointer)
}

func setRecursive(node interface{}, toks []string, value interface{}, allowAppend bool, fullPath string) (interface{}, error) {
	head := toks[0]
	if len(toks) == 1 {
		switch c := node.(type) {
		case map[string]interface{}:
			c[head] = value
			return c, nil
		case nil:
			m := map[string]interface{}{head: value}
			return m, nil
		case []interface{}:
			if allowAppend && head == "-" {
				return append(c, value), nil
			}
			idx, err := strconv.Atoi(head)
			if err != nil || idx < 0 || idx > len(c) {
				return nil, dogmaerr.NewErrChangeConflict(fullPath, "array index out of range")
			}
			if idx == len(c) {
				return append(c, value), nil
			}
			c[idx] = value
			return c, nil
		default:
			return nil, dogmaerr.NewErrChangeConflict(fullPath, "cannot set field on non-container value")
		}
	}

	switch c := node.(type) {
	case map[string]interface{}:
		child, ok := c[head]
		if !ok {
			child = nil
		}
		updated, err := setRecursive(child, toks[1:], value, allowAppend, fullPath)
		if err != nil {
			return nil, err
		}
		c[head] = updated
		return c, nil
	case []interface{}:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, dogmaerr.NewErrChangeConflict(fullPath, "array index out of range")
		}
		updated, err := setRecursive(c[idx], toks[1:], value, allowAppend, fullPath)
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	case nil:
		m := map[string]interface{}{}
		updated, err := setRecursive(nil, toks[1:], value, allowAppend, fullPath)
		if err != nil {
			return nil, err
		}
		m[head] = updated
		return m, nil
	default:
		return nil, dogmaerr.NewErrChangeConflict(fullPath, "path traverses a non-container value")
	}
}

func removeAtPointer(doc interface{}, pointer string) (interface{}, error) {
	toks := tokens(pointer)
	if len(toks) == 0 {
		return nil, nil
	}
	updated, removed, err := removeRecursive(doc, toks, pointer)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, dogmaerr.NewErrChangeConflict(pointer, "remove target does not exist")
	}
	return updated, nil
}

func removeRecursive(node interface{}, toks []string, fullPath string) (interface{}, bool, error) {
	head := toks[0]
	if len(toks) == 1 {
		switch c := node.(type) {
		case map[string]interface{}:
			if _, ok := c[head]; !ok {
				return node, false, nil
			}
			delete(c, head)
			return c, true, nil
		case []interface{}:
			idx, err := strconv.Atoi(head)
			if err != nil || idx < 0 || idx >= len(c) {
				return node, false, nil
			}
			return append(c[:idx], c[idx+1:]...), true, nil
		default:
			return node, false, nil
		}
	}

	switch c := node.(type) {
	case map[string]interface{}:
		child, ok := c[head]
		if !ok {
			return node, false, nil
		}
		updated, removed, err := removeRecursive(child, toks[1:], fullPath)
		if err != nil {
			return nil, false, err
		}
		c[head] = updated
		return c, removed, nil
	case []interface{}:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(c) {
			return node, false, nil
		}
		updated, removed, err := removeRecursive(c[idx], toks[1:], fullPath)
		if err != nil {
			return nil, false, err
		}
		c[idx] = updated
		return c, removed, nil
	default:
		return node, false, nil
	}
}
