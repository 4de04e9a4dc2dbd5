// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/lineage/internal/pattern"
)

func TestNotifyWakesMatchingWaiter(t *testing.T) {
	m := New()
	_, sink := m.Register(3, pattern.Compile("/configs/**"), 0)

	m.Notify(4, []string{"/configs/a.txt"})

	select {
	case res := <-sink:
		require.Equal(t, int64(4), res.Revision)
		require.False(t, res.Cancelled)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
	require.Equal(t, 0, m.Len())
}

func TestNotifyIgnoresWaiterAtSameRevision(t *testing.T) {
	m := New()
	_, sink := m.Register(4, pattern.Compile("/configs/**"), 0)

	m.Notify(4, []string{"/configs/a.txt"})

	select {
	case res := <-sink:
		t.Fatalf("waiter already at revision 4 should not be woken, got %+v", res)
	default:
	}
	require.Equal(t, 1, m.Len())
}

func TestNotifyIgnoresNonMatchingPattern(t *testing.T) {
	m := New()
	_, sink := m.Register(1, pattern.Compile("/other/**"), 0)

	m.Notify(2, []string{"/configs/a.txt"})

	select {
	case res := <-sink:
		t.Fatalf("non-matching waiter should not be woken, got %+v", res)
	default:
	}
	require.Equal(t, 1, m.Len())
}

func TestCancelResolvesWaiterAsCancelled(t *testing.T) {
	m := New()
	h, sink := m.Register(1, pattern.MatchAll(), 0)

	h.Cancel()

	select {
	case res := <-sink:
		require.True(t, res.Cancelled)
		require.Zero(t, res.Revision)
	case <-time.After(time.Second):
		t.Fatal("cancel did not resolve the waiter")
	}
	require.Equal(t, 0, m.Len())
}

func TestTimeoutResolvesWaiterWithNoRevision(t *testing.T) {
	m := New()
	_, sink := m.Register(1, pattern.MatchAll(), 10*time.Millisecond)

	select {
	case res := <-sink:
		require.False(t, res.Cancelled)
		require.Zero(t, res.Revision)
	case <-time.After(time.Second):
		t.Fatal("timeout did not resolve the waiter")
	}
	require.Equal(t, 0, m.Len())
}

func TestNotifyAfterCancelIsNoop(t *testing.T) {
	m := New()
	h, sink := m.Register(1, pattern.MatchAll(), 0)
	h.Cancel()
	<-sink

	require.NotPanics(t, func() { m.Notify(5, []string{"/a.txt"}) })
}

func TestCancelAfterNotifyIsNoop(t *testing.T) {
	m := New()
	h, sink := m.Register(1, pattern.MatchAll(), 0)
	m.Notify(2, []string{"/a.txt"})
	<-sink

	require.NotPanics(t, func() { h.Cancel() })
}
