// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cache

// Weight sums byte lengths of the arguments as a proxy for memory cost,
// matching the "sum of path lengths + content length" rule of thumb
// spec.md §4.D suggests for the weight function.
func Weight(parts ...[]byte) int64 {
	var w int64
	for _, p := range parts {
		w += int64(len(p))
	}
	return w
}

// WeightStrings is Weight for string-valued parts (paths, patterns,
// JSON-path expressions), avoiding a []byte conversion at call sites.
func WeightStrings(parts ...string) int64 {
	var w int64
	for _, p := range parts {
		w += int64(len(p))
	}
	return w
}
