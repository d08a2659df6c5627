package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/reducer"
)

type tick struct{}

// sleepy counts ticks and sleeps one second after the first.
func sleepy() reducer.Reducer[int, tick] {
	return reducer.Func[int, tick](func(n *int, _ tick, deps *dependency.Values) effect.Effect[tick] {
		*n++
		if *n > 1 {
			return effect.None[tick]()
		}
		clk := dependency.Get(deps, dependency.Clock)
		return effect.Run(func(ctx context.Context, send effect.Sender[tick]) error {
			if err := clk.Sleep(ctx, time.Second); err != nil {
				return err
			}
			send(tick{})
			return nil
		})
	})
}

func TestStoreDrivesTheTestClock(t *testing.T) {
	h := NewStore(t, 0, sleepy())

	task := h.Send(tick{})
	h.Sleepers(1)
	assert.Equal(t, Epoch, h.Clock.Now())

	h.Clock.Advance(time.Second)
	assert.NoError(t, task.Finish(Wait))
	h.Idle()
	assert.Equal(t, 2, h.Store.State())
	assert.Zero(t, h.Issues.Len())
}

func TestStoreFinishWaitsForTheAction(t *testing.T) {
	h := NewStore(t, 5, sleepy())

	h.Finish(tick{})
	h.Finish(tick{})
	assert.Equal(t, 7, h.Store.State())
}

// recorder captures assertion failures instead of failing the test.
type recorder struct {
	errors []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

// forever sleeps on the test clock until cancelled.
func forever() reducer.Reducer[int, tick] {
	return reducer.Func[int, tick](func(n *int, _ tick, deps *dependency.Values) effect.Effect[tick] {
		clk := dependency.Get(deps, dependency.Clock)
		return effect.Run(func(ctx context.Context, send effect.Sender[tick]) error {
			return clk.Sleep(ctx, time.Hour)
		})
	})
}

func TestCleanupFlagsRunningEffects(t *testing.T) {
	h := NewStore(t, 0, forever())
	h.Send(tick{})
	h.Sleepers(1)

	var r recorder
	h.verify(&r)
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "SkipInFlight")

	h.SkipInFlight()
	r = recorder{}
	h.verify(&r)
	assert.Empty(t, r.errors)
}

func TestCleanupFlagsUntakenIssues(t *testing.T) {
	h := NewStore(t, 0, sleepy())
	h.Store.Close()
	h.Send(tick{})

	var r recorder
	h.verify(&r)
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "TakeIssues")

	msgs := h.TakeIssues()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "closed store")
	r = recorder{}
	h.verify(&r)
	assert.Empty(t, r.errors)
}

func TestOpenJournal(t *testing.T) {
	j, path := OpenJournal(t)
	assert.NotNil(t, j)
	assert.FileExists(t, path)
}
