// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// CanonicalizeText implements spec.md §3's text canonicalization rule:
// "\r stripped; a trailing \n appended if the body is non-empty and
// did not end with \n."
func CanonicalizeText(content []byte) []byte {
	s := strings.ReplaceAll(string(content), "\r", "")
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return []byte(s)
}

// CanonicalizeJSON re-serializes raw through its parsed tree, the
// normalized form spec.md §3 defines structural-equality redundancy
// checks against. encoding/json already marshals map keys in sorted
// order, giving the same normalized-serialization property as the
// Jackson writer the spec names, without needing a third-party JSON
// library for this step.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, dogmaerr.NewErrChangeConflict("", "invalid json: "+err.Error())
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// jsonEqual reports whether a and b parse to structurally equal JSON
// trees, treating empty/absent bytes as JSON null (spec.md §4.C:
// "apply patch to old tree, treated as JSON null if absent").
func jsonEqual(a, b []byte) (bool, error) {
	var va, vb interface{}
	if len(a) > 0 {
		if err := json.Unmarshal(a, &va); err != nil {
			return false, dogmaerr.NewErrChangeConflict("", "invalid json: "+err.Error())
		}
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &vb); err != nil {
			return false, dogmaerr.NewErrChangeConflict("", "invalid json: "+err.Error())
		}
	}
	return reflect.DeepEqual(va, vb), nil
}
