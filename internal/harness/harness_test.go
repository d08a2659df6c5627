package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/store"
)

func TestRunReportsStateMismatchAndStops(t *testing.T) {
	s := &Scenario{
		Name:    "mismatch",
		Feature: "counter",
		Steps: []Step{
			{Send: "increment", Finish: true},
			{ExpectState: map[string]any{"count": 2}},
			{Send: "increment", Finish: true},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1: expect_state")
	assert.Len(t, result.Trace, 1, "the flow stops at the failed step")
}

func TestRunRejectsUndecodableSend(t *testing.T) {
	s := &Scenario{
		Name:    "undecodable",
		Feature: "counter",
		Steps:   []Step{{Send: "explode"}},
	}

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0")
	assert.Contains(t, err.Error(), "unknown action kind")
}

func TestRunUnknownFeature(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{Name: "x", Feature: "nope", Steps: []Step{{Send: "increment"}}})
	assert.ErrorContains(t, err, `unknown feature "nope"`)
}

func TestRunCollectsIssues(t *testing.T) {
	s := &Scenario{
		Name:    "missing_row",
		Feature: "todos",
		Steps:   []Step{{Send: "rename", Args: map[string]any{"id": 42, "name": "ghost"}, Finish: true}},
		Assertions: []Assertion{
			{Type: AssertIssueCount, Count: 1},
			{Type: AssertFinalState, Path: "active.0.name", Expect: "Blob"},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "missing element")
}

func TestRunTimesOutWaitingForSleepers(t *testing.T) {
	s := &Scenario{
		Name:    "no_sleepers",
		Feature: "counter",
		Steps:   []Step{{Sleepers: 1}},
	}

	result, err := Run(context.Background(), s, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "waiting for 1 sleepers (have 0)")
}

func TestRunWaitSeq(t *testing.T) {
	s := &Scenario{
		Name:    "wait_seq",
		Feature: "counter",
		Steps: []Step{
			{Send: "increment_later", Args: map[string]any{"delay_ms": 10}, As: "later"},
			{Advance: "10ms", Sleepers: 1},
			{WaitSeq: 2},
			{ExpectState: map[string]any{"count": 1}},
		},
		Assertions: []Assertion{{Type: AssertNoInFlight}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Seq: 2, Parent: 1, Origin: "effect", Kind: "delayed_increment"}, result.Trace[1])
}

type eventLog struct {
	mu   sync.Mutex
	seqs []int64
}

func (l *eventLog) ActionProcessed(ev store.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seqs = append(l.seqs, ev.Seq)
}

func TestRunNotifiesExtraObservers(t *testing.T) {
	log := &eventLog{}
	s := &Scenario{
		Name:    "observed",
		Feature: "app",
		Steps: []Step{
			{Send: "open_settings", Finish: true},
			{Send: "settings.increment", Finish: true},
			{Send: "close_settings", Finish: true},
		},
	}

	result, err := Run(context.Background(), s, WithObserver(log))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []int64{1, 2, 3}, log.seqs)
	assert.Equal(t, "settings.increment", result.Trace[1].Kind)
}
