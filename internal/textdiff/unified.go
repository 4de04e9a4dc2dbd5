// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package textdiff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antgroup/lineage/internal/dogmaerr"
)

// DefaultContextLines is the number of unchanged lines of context
// kept around each hunk, matching diferenco.DefaultContextLines.
const DefaultContextLines = 3

// Hunk is a contiguous run of line edits, anchored at 1-based line
// numbers in the "from" and "to" texts.
type Hunk struct {
	FromLine int
	ToLine   int
	Lines    []Line
}

// Unified is a sequence of hunks describing how to transform one text
// into another.
type Unified struct {
	Hunks []Hunk
}

// Empty reports whether the diff has no hunks, i.e. the two texts are
// identical.
func (u *Unified) Empty() bool { return u == nil || len(u.Hunks) == 0 }

// Diff computes the unified diff turning "from" into "to".
func Diff(from, to string) *Unified {
	a := splitLines(from)
	b := splitLines(to)
	edits := myers(a, b)
	return toHunks(edits)
}

// changeRun is a maximal run of consecutive non-Equal edits, with its
// index range into the full edit script.
type changeRun struct {
	start, end int // [start, end) into edits, end exclusive, edits[end-1] non-Equal
}

func findChangeRuns(edits []Line) []changeRun {
	var runs []changeRun
	i := 0
	for i < len(edits) {
		if edits[i].Kind == Equal {
			i++
			continue
		}
		start := i
		for i < len(edits) && edits[i].Kind != Equal {
			i++
		}
		runs = append(runs, changeRun{start: start, end: i})
	}
	return runs
}

// toHunks groups a flat edit script into hunks, each a maximal change
// run padded with up to DefaultContextLines of surrounding Equal
// lines. Runs whose padded windows overlap or touch are merged into a
// single hunk so Apply never sees two hunks claiming the same line.
func toHunks(edits []Line) *Unified {
	u := &Unified{}
	runs := findChangeRuns(edits)
	if len(runs) == 0 {
		return u
	}

	// positions[i] gives the (fromLine, toLine) 1-based position of
	// edits[i], i.e. the line numbers in effect before that edit is
	// applied.
	type pos struct{ from, to int }
	positions := make([]pos, len(edits)+1)
	f, tt := 1, 1
	for i, e := range edits {
		positions[i] = pos{from: f, to: tt}
		if e.Kind != Insert {
			f++
		}
		if e.Kind != Delete {
			tt++
		}
	}
	positions[len(edits)] = pos{from: f, to: tt}

	windows := make([][2]int, len(runs))
	for i, r := range runs {
		lo := r.start - DefaultContextLines
		if lo < 0 {
			lo = 0
		}
		hi := r.end + DefaultContextLines
		if hi > len(edits) {
			hi = len(edits)
		}
		windows[i] = [2]int{lo, hi}
	}

	// Merge overlapping/touching windows.
	merged := windows[:0:0]
	cur := windows[0]
	for i := 1; i < len(windows); i++ {
		if windows[i][0] <= cur[1] {
			if windows[i][1] > cur[1] {
				cur[1] = windows[i][1]
			}
			continue
		}
		merged = append(merged, cur)
		cur = windows[i]
	}
	merged = append(merged, cur)

	for _, w := range merged {
		lo, hi := w[0], w[1]
		h := Hunk{
			FromLine: positions[lo].from,
			ToLine:   positions[lo].to,
			Lines:    append([]Line(nil), edits[lo:hi]...),
		}
		u.Hunks = append(u.Hunks, h)
	}
	return u
}

// String renders the diff in unified-diff text form.
func (u *Unified) String() string {
	if u.Empty() {
		return ""
	}
	var b strings.Builder
	for _, h := range u.Hunks {
		fromCount, toCount := 0, 0
		for _, l := range h.Lines {
			switch l.Kind {
			case Delete:
				fromCount++
			case Insert:
				toCount++
			default:
				fromCount++
				toCount++
			}
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.FromLine, fromCount, h.ToLine, toCount)
		for _, l := range h.Lines {
			prefix := byte(' ')
			switch l.Kind {
			case Delete:
				prefix = '-'
			case Insert:
				prefix = '+'
			}
			content := l.Content
			if !strings.HasSuffix(content, "\n") {
				b.WriteByte(prefix)
				b.WriteString(content)
				b.WriteString("\n\\ No newline at end of file\n")
				continue
			}
			b.WriteByte(prefix)
			b.WriteString(content)
		}
	}
	return b.String()
}

// Parse reads a unified diff produced by String back into hunks.
func Parse(patch string) (*Unified, error) {
	u := &Unified{}
	lines := strings.SplitAfter(patch, "\n")
	var cur *Hunk
	for _, raw := range lines {
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "@@") {
			if cur != nil {
				u.Hunks = append(u.Hunks, *cur)
			}
			h, err := parseHunkHeader(raw)
			if err != nil {
				return nil, err
			}
			cur = h
			continue
		}
		if strings.HasPrefix(raw, "\\ No newline") {
			if cur != nil && len(cur.Lines) > 0 {
				last := &cur.Lines[len(cur.Lines)-1]
				last.Content = strings.TrimSuffix(last.Content, "\n")
			}
			continue
		}
		if cur == nil || len(raw) == 0 {
			continue
		}
		kind := Equal
		switch raw[0] {
		case '+':
			kind = Insert
		case '-':
			kind = Delete
		}
		cur.Lines = append(cur.Lines, Line{Kind: kind, Content: raw[1:]})
	}
	if cur != nil {
		u.Hunks = append(u.Hunks, *cur)
	}
	return u, nil
}

func parseHunkHeader(raw string) (*Hunk, error) {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "@@ "), " @@\n")
	raw = strings.TrimSuffix(raw, "\n")
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, dogmaerr.NewErrChangeConflict("", "malformed hunk header")
	}
	fromLine, err := parseRangeStart(fields[0])
	if err != nil {
		return nil, err
	}
	toLine, err := parseRangeStart(fields[1])
	if err != nil {
		return nil, err
	}
	return &Hunk{FromLine: fromLine, ToLine: toLine}, nil
}

func parseRangeStart(field string) (int, error) {
	field = strings.TrimPrefix(field, "+")
	field = strings.TrimPrefix(field, "-")
	comma := strings.IndexByte(field, ',')
	if comma >= 0 {
		field = field[:comma]
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, dogmaerr.NewErrChangeConflict("", "malformed hunk range: "+field)
	}
	if n == 0 {
		return 1, nil
	}
	return n, nil
}

// Apply applies the patch to base, verifying that every context and
// deleted line matches what the patch expects. A mismatch — the patch
// no longer applies cleanly against the current content — surfaces as
// change-conflict, per spec.md §4.C.
func Apply(base string, patch *Unified) (string, error) {
	baseLines := splitLines(base)
	var out strings.Builder
	cursor := 0 // 0-based index into baseLines already emitted
	for _, h := range patch.Hunks {
		target := h.FromLine - 1
		if target < cursor || target > len(baseLines) {
			return "", dogmaerr.NewErrChangeConflict("", "hunk does not align with base text")
		}
		for cursor < target {
			out.WriteString(baseLines[cursor])
			cursor++
		}
		for _, l := range h.Lines {
			switch l.Kind {
			case Equal, Delete:
				if cursor >= len(baseLines) || !linesEqual(baseLines[cursor], l.Content) {
					return "", dogmaerr.NewErrChangeConflict("", "patch context does not match base text")
				}
				if l.Kind == Equal {
					out.WriteString(baseLines[cursor])
				}
				cursor++
			case Insert:
				out.WriteString(l.Content)
			}
		}
	}
	for cursor < len(baseLines) {
		out.WriteString(baseLines[cursor])
		cursor++
	}
	return out.String(), nil
}

func linesEqual(a, b string) bool {
	return strings.TrimSuffix(a, "\n") == strings.TrimSuffix(b, "\n")
}
