// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// Query is either an IdentityQuery or a *JSONPathQuery (spec.md §3:
// "Query. Either identity(path) ... or json_path(path, [expr…])").
type Query interface{ isQuery() }

// IdentityQuery returns the whole entry at Path. A non-empty Assert
// additionally requires the entry be of that type — identity_text and
// identity_json in spec.md §3's terms.
type IdentityQuery struct {
	Path   string
	Assert EntryType
}

func (IdentityQuery) isQuery() {}

// Identity builds a plain identity query with no type assertion.
func Identity(path string) IdentityQuery { return IdentityQuery{Path: path} }

// IdentityText builds an identity query asserting the entry is text.
func IdentityText(path string) IdentityQuery { return IdentityQuery{Path: path, Assert: TypeText} }

// IdentityJSON builds an identity query asserting the entry is JSON.
func IdentityJSON(path string) IdentityQuery { return IdentityQuery{Path: path, Assert: TypeJSON} }

// JSONPathQuery applies a sequence of JSONPath-style expressions, each
// against the result of the previous (spec.md §3), to the JSON entry
// at Path.
type JSONPathQuery struct {
	Path  string
	Exprs []string
}

func (*JSONPathQuery) isQuery() {}

// NewJSONPathQuery compiles exprs eagerly, failing at construction
// time rather than at query execution (spec.md §4.C: "get(revision,
// query) ... JSON-path query applies expressions in order, failing
// compile at query construction time"). gjson (used to evaluate the
// expressions in find.go) has no separate parse/compile step of its
// own, so "compile" here means the structural validation below: empty
// or bracket-unbalanced expressions are rejected immediately instead
// of surfacing as a confusing failure partway through evaluation.
func NewJSONPathQuery(path string, exprs []string) (*JSONPathQuery, error) {
	if len(exprs) == 0 {
		return nil, dogmaerr.NewErrChangeConflict(path, "json path query requires at least one expression")
	}
	for _, expr := range exprs {
		if err := validateJSONPathExpr(expr); err != nil {
			return nil, err
		}
	}
	return &JSONPathQuery{Path: path, Exprs: append([]string(nil), exprs...)}, nil
}

func validateJSONPathExpr(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return dogmaerr.NewErrChangeConflict("", "empty json path expression")
	}
	depth := 0
	for _, r := range expr {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
		if depth < 0 {
			return dogmaerr.NewErrChangeConflict("", "unbalanced json path expression: "+expr)
		}
	}
	if depth != 0 {
		return dogmaerr.NewErrChangeConflict("", "unbalanced json path expression: "+expr)
	}
	return nil
}

// FindOptions controls Find's result shape (spec.md §4.C: "options
// include fetch_content and max_entries").
type FindOptions struct {
	FetchContent bool
	MaxEntries   int // 0 means unlimited
}
