package demo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/testutil"
)

func TestCounterIncrementDecrement(t *testing.T) {
	h := testutil.NewStore(t, Counter{}, NewCounterReducer())

	h.Finish(Increment{})
	assert.Equal(t, Counter{Count: 1}, h.Store.State())

	h.Finish(Decrement{})
	assert.Equal(t, Counter{Count: 0}, h.Store.State())

	assert.Empty(t, h.Store.InFlight())
	assert.Zero(t, h.Issues.Len())
}

func TestCounterDelayedIncrementDebounces(t *testing.T) {
	h := testutil.NewStore(t, Counter{}, NewCounterReducer())

	first := h.Send(IncrementLater{Delay: time.Second})
	second := h.Send(IncrementLater{Delay: time.Second})
	require.NoError(t, first.Finish(time.Second), "first increment should be cancelled")
	assert.Equal(t, Counter{Pending: true}, h.Store.State())

	h.Sleepers(1)
	h.Clock.Advance(time.Second)
	require.NoError(t, second.Finish(time.Second))

	assert.Equal(t, Counter{Count: 1}, h.Store.State())
	assert.Empty(t, h.Store.InFlight())
}

func TestCounterCancelIncrement(t *testing.T) {
	h := testutil.NewStore(t, Counter{}, NewCounterReducer())

	later := h.Send(IncrementLater{Delay: time.Minute})
	h.Sleepers(1)
	h.Finish(CancelIncrement{})
	require.NoError(t, later.Finish(time.Second))

	assert.Equal(t, Counter{}, h.Store.State())
	assert.Zero(t, h.Clock.Pending())
}

func TestCounterCloseWhenNotPresentedReports(t *testing.T) {
	h := testutil.NewStore(t, Counter{}, NewCounterReducer())

	h.Finish(CloseCounter{})

	issues := h.TakeIssues()
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "not presented")
}
