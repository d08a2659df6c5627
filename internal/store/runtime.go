package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/reducer"
)

// pending is a buffered action waiting for the drain.
type pending[A any] struct {
	action A
	task   *Task
	origin Origin
	parent int64
}

// runtime is the root of a store tree. It owns the state, the action
// buffer, the cancellation table, and the in-flight effect set.
type runtime[S, A any] struct {
	reducer   reducer.Reducer[S, A]
	deps      *dependency.Values
	issues    issue.Reporter
	logger    *slog.Logger
	scheduler Scheduler
	observers []Observer

	ctx  context.Context
	stop context.CancelFunc

	stateMu sync.RWMutex
	state   S

	mu       sync.Mutex
	buffer   []pending[A]
	draining bool
	closed   bool
	seq      atomic.Int64

	effectsMu     sync.Mutex
	cancellations map[any]map[*cancellation]struct{}
	inFlight      map[*running]struct{}
	effectSeq     uint64
	effects       sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[uint64]func()
	nextSub uint64
}

func newRuntime[S, A any](initial S, r reducer.Reducer[S, A], cfg *config) *runtime[S, A] {
	deps := cfg.dependencies()
	rt := &runtime[S, A]{
		reducer:       r,
		deps:          deps,
		issues:        dependency.Get(deps, dependency.Issues),
		logger:        dependency.Get(deps, dependency.Logger),
		scheduler:     cfg.scheduler,
		observers:     cfg.observers,
		state:         initial,
		buffer:        make([]pending[A], 0, 16),
		cancellations: make(map[any]map[*cancellation]struct{}),
		inFlight:      make(map[*running]struct{}),
		subs:          make(map[uint64]func()),
	}
	rt.ctx, rt.stop = context.WithCancel(context.Background())
	return rt
}

func (rt *runtime[S, A]) report(format string, args ...any) {
	issue.Reportf(rt.issues, format, args...)
}

// send buffers action and drains the buffer unless another goroutine
// already is.
func (rt *runtime[S, A]) send(action A, origin Origin, parent int64) *Task {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		if origin == OriginSend {
			rt.report("An action was sent to a closed store. Action: %T.", action)
		}
		return completedTask()
	}
	task := newTask(rt.ctx, rt)
	rt.buffer = append(rt.buffer, pending[A]{action: action, task: task, origin: origin, parent: parent})
	if rt.draining {
		rt.mu.Unlock()
		return task
	}
	rt.draining = true
	rt.mu.Unlock()

	rt.drain()
	return task
}

// drain processes buffered actions until the buffer is empty. Subscribers
// are notified once the buffer empties, while this goroutine still owns the
// drain, so their sends are buffered and processed before ownership is
// released.
//
// If a reducer panics, the panicking action's task and every buffered task
// are released before the panic propagates, so waiters do not hang.
func (rt *runtime[S, A]) drain() {
	var current *Task
	defer func() {
		if r := recover(); r != nil {
			rt.mu.Lock()
			dropped := rt.buffer
			rt.buffer = nil
			rt.draining = false
			rt.mu.Unlock()

			if len(dropped) > 0 {
				rt.logger.Error("dropping buffered actions after panic", "count", len(dropped))
			}
			if current != nil {
				current.release()
			}
			for _, p := range dropped {
				p.task.release()
			}
			panic(r)
		}
	}()

	dirty := false
	for {
		rt.mu.Lock()
		if len(rt.buffer) == 0 {
			if !dirty {
				rt.draining = false
				rt.mu.Unlock()
				return
			}
			rt.mu.Unlock()
			dirty = false
			rt.notify()
			continue
		}

		p := rt.buffer[0]
		// Nil out the slot so the buffer does not retain the action.
		rt.buffer[0] = pending[A]{}
		if len(rt.buffer) == 1 {
			rt.buffer = rt.buffer[:0]
		} else {
			rt.buffer = rt.buffer[1:]
		}
		rt.mu.Unlock()

		current = p.task
		rt.process(p, rt.seq.Add(1))
		current = nil
		dirty = true
	}
}

func (rt *runtime[S, A]) process(p pending[A], seq int64) {
	snapshot, eff := rt.reduce(p.action)

	rt.logger.Debug("action processed",
		"seq", seq,
		"action", fmt.Sprintf("%T", p.action),
		"origin", p.origin.String(),
		"effect", eff.Kind().String(),
	)

	if len(rt.observers) > 0 {
		ev := Event{Seq: seq, Parent: p.parent, Origin: p.origin, Action: p.action, State: snapshot}
		for _, o := range rt.observers {
			o.ActionProcessed(ev)
		}
	}

	x := &execution[S, A]{rt: rt, task: p.task, seq: seq, origin: p.action, launching: true}
	x.launch(eff)
	p.task.release()
}

func (rt *runtime[S, A]) reduce(action A) (S, effect.Effect[A]) {
	rt.stateMu.Lock()
	defer rt.stateMu.Unlock()
	eff := rt.reducer.Reduce(&rt.state, action, rt.deps)
	return rt.state, eff
}

func (rt *runtime[S, A]) view(fn func(S, bool)) {
	rt.stateMu.RLock()
	defer rt.stateMu.RUnlock()
	fn(rt.state, true)
}

func (rt *runtime[S, A]) notify() {
	rt.subsMu.Lock()
	callbacks := make([]func(), 0, len(rt.subs))
	for _, fn := range rt.subs {
		callbacks = append(callbacks, fn)
	}
	rt.subsMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (rt *runtime[S, A]) subscribe(fn func()) func() {
	rt.subsMu.Lock()
	rt.nextSub++
	id := rt.nextSub
	rt.subs[id] = fn
	rt.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rt.subsMu.Lock()
			delete(rt.subs, id)
			rt.subsMu.Unlock()
		})
	}
}

func (rt *runtime[S, A]) sequence() int64 { return rt.seq.Load() }

func (rt *runtime[S, A]) dependencies() *dependency.Values { return rt.deps }

func (rt *runtime[S, A]) reporter() issue.Reporter { return rt.issues }

func (rt *runtime[S, A]) close() {
	rt.mu.Lock()
	rt.closed = true
	rt.mu.Unlock()
	rt.stop()
}

func (rt *runtime[S, A]) shutdown(ctx context.Context) error {
	rt.close()
	done := make(chan struct{})
	go func() {
		rt.effects.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
