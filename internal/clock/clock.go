// Package clock abstracts time so effects that sleep, debounce, or tick can
// be driven deterministically in tests.
package clock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roach88/composable/internal/issue"
)

// Clock is the time source effects depend on.
//
// Sleep blocks until d has elapsed on the clock or ctx is done, whichever
// comes first, and returns ctx.Err() in the latter case.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time { return time.Now() }

// Sleep implements Clock.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Immediate never blocks. Sleeping advances its notion of now by the
// requested duration and returns at once.
//
// Thread-safety: all methods are safe for concurrent use.
type Immediate struct {
	mu  sync.Mutex
	now time.Time
}

// NewImmediate creates an immediate clock starting at start.
func NewImmediate(start time.Time) *Immediate {
	return &Immediate{now: start}
}

// Now implements Clock.
func (c *Immediate) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock.
func (c *Immediate) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.mu.Unlock()
	return nil
}

// Unimplemented reports an issue whenever it is used and then behaves like
// an immediate clock. It is the default clock for test-mode dependencies so
// that a test touching time without overriding the clock is flagged.
type Unimplemented struct {
	Reporter issue.Reporter
	inner    Immediate
}

// NewUnimplemented creates a clock that reports through r.
func NewUnimplemented(r issue.Reporter) *Unimplemented {
	return &Unimplemented{Reporter: r}
}

// Now implements Clock.
func (c *Unimplemented) Now() time.Time {
	issue.Reportf(c.Reporter, "unimplemented clock: Now called; override the clock dependency")
	return c.inner.Now()
}

// Sleep implements Clock.
func (c *Unimplemented) Sleep(ctx context.Context, d time.Duration) error {
	issue.Reportf(c.Reporter, "unimplemented clock: Sleep(%s) called; override the clock dependency", d)
	return c.inner.Sleep(ctx, d)
}

// Test is a manually advanced clock. Time only moves when Advance or Run is
// called; sleepers whose deadline is reached are released in deadline order.
//
// Thread-safety: all methods are safe for concurrent use.
type Test struct {
	mu       sync.Mutex
	now      time.Time
	sleepers []*sleeper
	changed  chan struct{} // closed and replaced whenever sleepers changes
}

type sleeper struct {
	deadline time.Time
	order    int
	wake     chan struct{}
}

// NewTest creates a test clock frozen at start.
func NewTest(start time.Time) *Test {
	return &Test{now: start, changed: make(chan struct{})}
}

// Now implements Clock.
func (c *Test) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock.
func (c *Test) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	c.mu.Lock()
	s := &sleeper{
		deadline: c.now.Add(d),
		order:    len(c.sleepers),
		wake:     make(chan struct{}),
	}
	c.sleepers = append(c.sleepers, s)
	c.signalLocked()
	c.mu.Unlock()

	select {
	case <-s.wake:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.removeLocked(s)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Advance moves the clock forward by d, releasing every sleeper whose
// deadline falls within the new time.
func (c *Test) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(c.now.Add(d))
}

// AdvanceTo moves the clock to t. Moving backwards is ignored.
func (c *Test) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(t)
}

// Run advances to the latest pending deadline, releasing all sleepers
// currently registered.
func (c *Test) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()
	latest := c.now
	for _, s := range c.sleepers {
		if s.deadline.After(latest) {
			latest = s.deadline
		}
	}
	c.advanceLocked(latest)
}

// Pending returns the number of goroutines blocked in Sleep.
func (c *Test) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleepers)
}

// BlockUntil waits until at least n goroutines are blocked in Sleep.
func (c *Test) BlockUntil(ctx context.Context, n int) error {
	for {
		c.mu.Lock()
		if len(c.sleepers) >= n {
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (c *Test) advanceLocked(to time.Time) {
	if to.Before(c.now) {
		return
	}
	sort.SliceStable(c.sleepers, func(i, j int) bool {
		a, b := c.sleepers[i], c.sleepers[j]
		if a.deadline.Equal(b.deadline) {
			return a.order < b.order
		}
		return a.deadline.Before(b.deadline)
	})

	kept := c.sleepers[:0]
	for _, s := range c.sleepers {
		if !s.deadline.After(to) {
			c.now = s.deadline
			close(s.wake)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(c.sleepers); i++ {
		c.sleepers[i] = nil
	}
	c.sleepers = kept
	c.now = to
	c.signalLocked()
}

func (c *Test) removeLocked(s *sleeper) {
	for i, other := range c.sleepers {
		if other == s {
			c.sleepers = append(c.sleepers[:i], c.sleepers[i+1:]...)
			c.signalLocked()
			return
		}
	}
}

func (c *Test) signalLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
