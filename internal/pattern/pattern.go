// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pattern

import "strings"

// PathPattern is a comma-separated list of glob patterns, as described
// in spec.md §3. Pattern "/**" matches all paths and subsumes every
// other pattern in the list, which Compile collapses eagerly so that
// MatchAll callers never pay for per-glob evaluation.
type PathPattern struct {
	raw      string
	globs    []*glob
	matchAll bool
}

// Compile parses a comma-separated pattern list. An empty string
// compiles to a pattern that matches nothing.
func Compile(raw string) *PathPattern {
	raw = strings.TrimSpace(raw)
	pp := &PathPattern{raw: raw}
	if raw == "" {
		return pp
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g := compileGlob(part)
		if g.isMatchAll() {
			pp.matchAll = true
			pp.globs = nil
			return pp
		}
		pp.globs = append(pp.globs, g)
	}
	return pp
}

// MatchAll is the pattern that matches every path.
func MatchAll() *PathPattern { return Compile("/**") }

// Match reports whether path (absolute, "/"-separated) matches any
// glob in the pattern list.
func (pp *PathPattern) Match(path string) bool {
	if pp.matchAll {
		return true
	}
	for _, g := range pp.globs {
		if g.match(path) {
			return true
		}
	}
	return false
}

// MatchAny reports whether any path in paths matches the pattern —
// used by the watch multiplexer to test a changed-paths set in one
// call.
func (pp *PathPattern) MatchAny(paths []string) bool {
	for _, p := range paths {
		if pp.Match(p) {
			return true
		}
	}
	return false
}

func (pp *PathPattern) String() string { return pp.raw }

// IsMatchAll reports whether the compiled pattern is the all-subsuming
// "/**" pattern.
func (pp *PathPattern) IsMatchAll() bool { return pp.matchAll }
