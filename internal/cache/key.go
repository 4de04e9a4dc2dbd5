// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cache

import "strings"

// JoinKey folds operation-specific fields (a path, a pattern string, a
// JSON-path expression list already joined by the caller, ...) into the
// single string Call.Key expects. Uses a unit-separator unlikely to occur
// in paths or patterns, rather than a delimiter like "/" that collides
// with the values being joined.
func JoinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
