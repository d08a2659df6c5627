package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Loop is a Scheduler that runs all scheduled work on the single goroutine
// executing Run. Installing it with WithScheduler marshals every effect
// action onto that goroutine, the way UI applications confine state
// mutation to a main thread.
//
// The queue is unbounded so that effects never block while delivering.
type Loop struct {
	mu     sync.Mutex
	work   []func()
	closed bool
	signal chan struct{} // signals work availability (buffered, size 1)
	logger *slog.Logger
}

// NewLoop creates an idle loop. Call Run to start processing.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		work:   make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
		logger: logger,
	}
}

// Schedule enqueues fn. It returns false once the loop is stopped.
// Thread-safe: may be called from any goroutine.
func (l *Loop) Schedule(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.work = append(l.work, fn)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Do schedules fn and waits for it to run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Schedule(func() {
		defer close(done)
		fn()
	}) {
		return fmt.Errorf("loop stopped")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) tryDequeue() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.work) == 0 {
		return nil, false
	}
	fn := l.work[0]
	l.work[0] = nil
	if len(l.work) == 1 {
		l.work = l.work[:0]
	} else {
		l.work = l.work[1:]
	}
	return fn, true
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.work)
}

// Run processes scheduled work until ctx is done or Stop is called and the
// queue has drained. A panicking function is logged and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		if fn, ok := l.tryDequeue(); ok {
			l.runOne(fn)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.Stop()
			return ctx.Err()

		case <-l.signal:
			// The signal channel is closed by Stop, which makes this case
			// fire immediately; exit once the queue is empty.
			l.mu.Lock()
			finished := l.closed && len(l.work) == 0
			l.mu.Unlock()
			if finished {
				l.logger.Debug("loop stopping: stopped")
				return nil
			}
		}
	}
}

func (l *Loop) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled work panicked", "panic", r)
		}
	}()
	fn()
}

// Stop rejects further work. Run returns once queued work has drained.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}
