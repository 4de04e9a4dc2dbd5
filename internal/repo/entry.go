// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo implements the repository engine (spec.md §4.C): a
// per-repository linear commit log over the content-addressed object
// store, with change normalization, conflict detection, diff/history
// walking, and path-pattern queries. It is the component that ties
// internal/object, internal/objstore, internal/commitindex,
// internal/jsonpatch and internal/textdiff together into the single
// write path described in spec.md §4.C and the read paths in
// "Find and get"/"Diff and history".
package repo

import (
	"path"
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// EntryType classifies a repository path, inferred from its extension
// (spec.md §3: "Type is one of {directory, text, json, yaml}").
type EntryType string

const (
	TypeDirectory EntryType = "directory"
	TypeText      EntryType = "text"
	TypeJSON      EntryType = "json"
	TypeYAML      EntryType = "yaml"
)

// Entry is a path returned by Find or Get: its type and, when
// requested, its canonical content.
type Entry struct {
	Path    string
	Type    EntryType
	Content []byte
}

// InferType infers an entry's type from its path extension. Anything
// that isn't .json/.json5 or .yml/.yaml is text, matching spec.md §3's
// "type is inferred from extension".
func InferType(p string) EntryType {
	switch strings.ToLower(path.Ext(p)) {
	case ".json", ".json5":
		return TypeJSON
	case ".yml", ".yaml":
		return TypeYAML
	default:
		return TypeText
	}
}

// ValidatePath enforces spec.md §3's entry path shape: absolute,
// forward-slash separated, never empty, no trailing slash except the
// root itself, no empty path segments.
func ValidatePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return dogmaerr.NewErrChangeConflict(p, "path must be absolute")
	}
	if p != "/" && strings.HasSuffix(p, "/") {
		return dogmaerr.NewErrChangeConflict(p, "path must not end with a slash")
	}
	if strings.Contains(p, "//") {
		return dogmaerr.NewErrChangeConflict(p, "path must not contain an empty segment")
	}
	return nil
}
