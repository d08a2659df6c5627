package effect

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/composable/internal/clock"
)

func sleep[A any](clk clock.Clock, d time.Duration) Effect[A] {
	return Run(func(ctx context.Context, _ Sender[A]) error {
		return clk.Sleep(ctx, d)
	}, Named[A]("sleep"))
}

// Delay runs e after d has elapsed on clk.
func Delay[A any](e Effect[A], d time.Duration, clk clock.Clock) Effect[A] {
	if e.IsNone() {
		return e
	}
	return Concatenate(sleep[A](clk, d), e)
}

// Debounce delays e by d and cancels any previous effect debounced under
// the same id, so only the last of a burst runs.
func Debounce[A any](e Effect[A], id any, d time.Duration, clk clock.Clock) Effect[A] {
	if e.IsNone() {
		return e
	}
	return Cancellable(Delay(e, d, clk), id, true)
}

// Throttler limits how often effects tagged with the same id run.
// A Throttler is typically held as a dependency or package variable and
// shared by every reduction that throttles.
//
// Thread-safety: all methods are safe for concurrent use.
type Throttler struct {
	clk    clock.Clock
	period time.Duration

	mu   sync.Mutex
	last map[any]time.Time
}

// NewThrottler creates a throttler emitting at most once per period.
func NewThrottler(clk clock.Clock, period time.Duration) *Throttler {
	return &Throttler{clk: clk, period: period, last: make(map[any]time.Time)}
}

// Throttle decides, at reduction time, what to do with e:
//   - if nothing ran under id within the period, e runs now;
//   - otherwise, when latest is set, e is scheduled for the end of the
//     period, replacing any previously scheduled effect under id;
//   - otherwise e is dropped.
func Throttle[A any](t *Throttler, e Effect[A], id any, latest bool) Effect[A] {
	if e.IsNone() {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	last, seen := t.last[id]
	if !seen || now.Sub(last) >= t.period {
		t.last[id] = now
		return Cancellable(e, id, true)
	}
	if !latest {
		return None[A]()
	}
	remaining := t.period - now.Sub(last)
	t.last[id] = last.Add(t.period)
	return Cancellable(Delay(e, remaining, t.clk), id, true)
}
