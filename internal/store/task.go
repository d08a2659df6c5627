package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrUnfinished is returned by Task.Finish when effects are still running
// after the timeout.
var ErrUnfinished = errors.New("effects still in flight")

// Task tracks the work started by one Send: the reduction, the effects it
// returned, and, transitively, the work of every action those effects sent.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	owner  taskOwner

	mu        sync.Mutex
	pending   int
	done      chan struct{}
	children  []*Task
	onDone    []func()
	cancelled bool
}

type taskOwner interface {
	outstanding(t *Task) []EffectInfo
	report(format string, args ...any)
}

// newTask creates a task holding one unit of pending work (its reduction).
func newTask(parent context.Context, owner taskOwner) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ctx:     ctx,
		cancel:  cancel,
		owner:   owner,
		pending: 1,
		done:    make(chan struct{}),
	}
}

// completedTask returns a task that is already done.
func completedTask() *Task {
	t := &Task{done: make(chan struct{}), cancel: func() {}}
	close(t.done)
	return t
}

// Done is closed when all of the task's work has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// IsDone reports whether all of the task's work has completed.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task is done or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish waits up to timeout for the task. On timeout it reports an issue
// naming the effects still running and returns ErrUnfinished.
func (t *Task) Finish(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := t.Wait(ctx); err == nil {
		return nil
	}

	var names []string
	if t.owner != nil {
		for _, info := range t.owner.outstanding(t) {
			names = append(names, info.String())
		}
		t.owner.report("Expected task to finish within %s, but effects are still running: %s. "+
			"Cancel long-living effects or wait on them explicitly.",
			timeout, strings.Join(names, ", "))
	}
	return fmt.Errorf("finish after %s: %w", timeout, ErrUnfinished)
}

// Cancel cancels every effect of the task, including effects of actions
// they sent. Cancel does not wait; use Wait to observe completion.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	children := t.children
	t.mu.Unlock()

	t.cancel()
	for _, c := range children {
		c.Cancel()
	}
}

// hold registers one more unit of pending work.
func (t *Task) hold() {
	t.mu.Lock()
	t.pending++
	t.mu.Unlock()
}

// release completes one unit of pending work.
func (t *Task) release() {
	t.mu.Lock()
	if t.pending <= 0 {
		t.mu.Unlock()
		return
	}
	t.pending--
	if t.pending > 0 {
		t.mu.Unlock()
		return
	}
	callbacks := t.onDone
	t.onDone = nil
	close(t.done)
	t.mu.Unlock()

	t.cancel()
	for _, fn := range callbacks {
		fn()
	}
}

// whenDone runs fn once the task is done, immediately if it already is.
func (t *Task) whenDone(fn func()) {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		fn()
		return
	default:
	}
	t.onDone = append(t.onDone, fn)
	t.mu.Unlock()
}

// adopt makes child part of t: t is not done until child is, and
// cancelling t cancels child.
func (t *Task) adopt(child *Task) {
	t.mu.Lock()
	cancelled := t.cancelled
	t.children = append(t.children, child)
	t.pending++
	t.mu.Unlock()

	if cancelled {
		child.Cancel()
	}
	child.whenDone(t.release)
}

// isDescendantOf reports whether t is ancestor or one of the tasks it
// adopted, transitively.
func (t *Task) isDescendantOf(ancestor *Task) bool {
	if t == ancestor {
		return true
	}
	ancestor.mu.Lock()
	children := append([]*Task(nil), ancestor.children...)
	ancestor.mu.Unlock()
	for _, c := range children {
		if t.isDescendantOf(c) {
			return true
		}
	}
	return false
}
