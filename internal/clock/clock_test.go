package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/issue"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTestClockReleasesSleepersOnAdvance(t *testing.T) {
	clk := NewTest(epoch)
	ctx := context.Background()

	var woke atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, clk.Sleep(ctx, time.Second))
		woke.Add(1)
	}()

	require.NoError(t, clk.BlockUntil(ctx, 1))
	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, clk.Pending())
	assert.Equal(t, int32(0), woke.Load())

	clk.Advance(500 * time.Millisecond)
	<-done
	assert.Equal(t, int32(1), woke.Load())
	assert.Equal(t, epoch.Add(time.Second), clk.Now())
	assert.Equal(t, 0, clk.Pending())
}

func TestTestClockSleepCancelled(t *testing.T) {
	clk := NewTest(epoch)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() { errs <- clk.Sleep(ctx, time.Hour) }()

	require.NoError(t, clk.BlockUntil(context.Background(), 1))
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Eventually(t, func() bool { return clk.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestTestClockRun(t *testing.T) {
	clk := NewTest(epoch)
	ctx := context.Background()

	done := make(chan struct{}, 2)
	for _, d := range []time.Duration{time.Second, time.Minute} {
		go func() {
			_ = clk.Sleep(ctx, d)
			done <- struct{}{}
		}()
	}
	require.NoError(t, clk.BlockUntil(ctx, 2))
	clk.Run()
	<-done
	<-done
	assert.Equal(t, epoch.Add(time.Minute), clk.Now())
}

func TestTestClockAdvanceBackwardsIgnored(t *testing.T) {
	clk := NewTest(epoch)
	clk.AdvanceTo(epoch.Add(-time.Hour))
	assert.Equal(t, epoch, clk.Now())
}

func TestImmediateClock(t *testing.T) {
	clk := NewImmediate(epoch)
	require.NoError(t, clk.Sleep(context.Background(), time.Minute))
	assert.Equal(t, epoch.Add(time.Minute), clk.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clk.Sleep(ctx, time.Minute), context.Canceled)
}

func TestUnimplementedClockReports(t *testing.T) {
	c := issue.NewCollector()
	clk := NewUnimplemented(c)
	_ = clk.Now()
	require.NoError(t, clk.Sleep(context.Background(), time.Second))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Now")
	assert.Contains(t, msgs[1], "Sleep(1s)")
}

func TestRealClockSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Real{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Real{}.Sleep(context.Background(), time.Millisecond))
}
