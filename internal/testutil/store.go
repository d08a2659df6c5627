// Package testutil provides helpers shared by feature and command tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/clock"
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/reducer"
	"github.com/roach88/composable/internal/store"
)

// Epoch is the start time of every test clock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Wait bounds every blocking helper.
const Wait = time.Second

// Store is a test-mode store with a manual clock and a collecting issue
// reporter.
type Store[S, A any] struct {
	t          *testing.T
	skipFlight bool

	Store  *store.Store[S, A]
	Issues *issue.Collector
	Clock  *clock.Test
}

// NewStore starts a Store that is closed when t finishes. Extra options are
// applied after the test defaults.
//
// Before closing, cleanup fails the test if effects are still in flight or
// reported issues were never taken with TakeIssues.
func NewStore[S, A any](t *testing.T, initial S, r reducer.Reducer[S, A], opts ...store.Option) *Store[S, A] {
	t.Helper()
	h := &Store[S, A]{t: t, Issues: issue.NewCollector(), Clock: clock.NewTest(Epoch)}
	base := []store.Option{
		store.WithMode(dependency.Test),
		store.WithReporter(h.Issues),
		store.WithDependencies(dependency.Set[clock.Clock](dependency.Clock, h.Clock)),
	}
	h.Store = store.New(initial, r, append(base, opts...)...)
	t.Cleanup(func() {
		h.verify(t)
		h.Store.Close()
	})
	return h
}

// verify asserts that the test accounted for every effect and issue.
func (h *Store[S, A]) verify(t assert.TestingT) {
	if !h.skipFlight {
		deadline := time.Now().Add(Wait)
		for len(h.Store.InFlight()) > 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		assert.Empty(t, h.Store.InFlight(), "effects still in flight at the end of the test; "+
			"wait for them or call SkipInFlight")
	}
	assert.Empty(t, h.Issues.Messages(), "issues were reported but never taken with TakeIssues")
}

// SkipInFlight lets the test end with effects still running. Close cancels
// them.
func (h *Store[S, A]) SkipInFlight() {
	h.skipFlight = true
}

// TakeIssues returns the messages of every issue reported so far and
// clears them.
func (h *Store[S, A]) TakeIssues() []string {
	var out []string
	for _, i := range h.Issues.Take() {
		out = append(out, i.Message)
	}
	return out
}

// Send sends a without waiting for its effects.
func (h *Store[S, A]) Send(a A) *store.Task {
	return h.Store.Send(a)
}

// Finish sends a and waits for everything it started.
func (h *Store[S, A]) Finish(a A) {
	h.t.Helper()
	require.NoError(h.t, h.Store.Send(a).Finish(Wait))
}

// Sleepers waits until n effects are blocked on the clock.
func (h *Store[S, A]) Sleepers(n int) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Wait)
	defer cancel()
	require.NoError(h.t, h.Clock.BlockUntil(ctx, n), "waiting for %d sleepers", n)
}

// Idle waits until no effects are in flight.
func (h *Store[S, A]) Idle() {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.Store.InFlight()) == 0 },
		Wait, time.Millisecond, "effects still in flight")
}
