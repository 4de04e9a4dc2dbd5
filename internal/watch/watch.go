// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package watch implements the per-repository watch multiplexer:
// long-poll waiters registered against a last-known revision and a
// path pattern, woken when a commit touches a matching path.
package watch

import (
	"sync"
	"time"

	"github.com/antgroup/lineage/internal/pattern"
)

// Result is delivered exactly once on a waiter's channel.
type Result struct {
	// Revision is the newest revision that satisfied the waiter, or 0
	// if the waiter resolved without a match (timeout or cancel).
	Revision int64
	// Cancelled is true when the caller explicitly cancelled the
	// waiter, as opposed to the timeout firing.
	Cancelled bool
}

type waiter struct {
	lastKnown int64
	pattern   *pattern.PathPattern
	sink      chan Result
	timer     *time.Timer
}

// Multiplexer is one logical instance per repository; it must not be
// shared across repositories since notify's revision ordering is only
// meaningful within one.
type Multiplexer struct {
	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

// New returns an empty multiplexer.
func New() *Multiplexer {
	return &Multiplexer{waiters: make(map[*waiter]struct{})}
}

// Waiter is the handle returned by Register; callers use it to Cancel.
type Waiter struct {
	mux *Multiplexer
	w   *waiter
}

// Register enrolls a waiter for lastKnown/pat and returns a handle plus
// the channel its single Result is delivered on. timeout <= 0 means no
// timer is scheduled (the caller manages its own deadline via ctx,
// typically by calling Cancel when ctx is done).
func (m *Multiplexer) Register(lastKnown int64, pat *pattern.PathPattern, timeout time.Duration) (*Waiter, <-chan Result) {
	w := &waiter{
		lastKnown: lastKnown,
		pattern:   pat,
		sink:      make(chan Result, 1),
	}

	m.mu.Lock()
	m.waiters[w] = struct{}{}
	m.mu.Unlock()

	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			m.resolve(w, Result{})
		})
	}

	return &Waiter{mux: m, w: w}, w.sink
}

// Cancel removes the waiter, if still registered, and resolves its sink
// with Cancelled=true. A no-op if the waiter already resolved (timeout
// fired or notify already woke it).
func (h *Waiter) Cancel() {
	h.mux.resolve(h.w, Result{Cancelled: true})
}

// Notify is invoked by the repository engine, off the write lock, after
// a commit publishes newRevision with changedPaths. Every waiter whose
// lastKnown < newRevision and whose pattern matches any changed path is
// woken with newRevision and removed; a waiter already at newRevision
// (lastKnown == newRevision) is left registered, since it already knew
// about that revision.
func (m *Multiplexer) Notify(newRevision int64, changedPaths []string) {
	m.mu.Lock()
	var woken []*waiter
	for w := range m.waiters {
		if w.lastKnown < newRevision && w.pattern.MatchAny(changedPaths) {
			woken = append(woken, w)
			delete(m.waiters, w)
		}
	}
	m.mu.Unlock()

	for _, w := range woken {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.sink <- Result{Revision: newRevision}
	}
}

// resolve removes w if still registered and delivers result; a waiter
// already removed by Notify or a prior resolve is left untouched so the
// sink is never written to twice.
func (m *Multiplexer) resolve(w *waiter, result Result) {
	m.mu.Lock()
	_, present := m.waiters[w]
	if present {
		delete(m.waiters, w)
	}
	m.mu.Unlock()

	if !present {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.sink <- result
}

// Len reports the number of currently registered waiters, for tests and
// diagnostics.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
