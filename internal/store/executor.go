package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/composable/internal/effect"
)

// cancellation is one live registration in the cancellation table.
type cancellation struct {
	cancel context.CancelFunc
}

// running is one in-flight Run effect.
type running struct {
	id     uint64
	name   string
	seq    int64
	action any
	task   *Task
}

// EffectInfo describes an in-flight effect.
type EffectInfo struct {
	ID uint64
	// Name is the effect's label, if it was given one with effect.Named.
	Name string
	// Seq and Action identify the action whose reduction returned the effect.
	Seq    int64
	Action any
}

// String renders the effect for diagnostics.
func (e EffectInfo) String() string {
	name := e.Name
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("%s started by %T (seq %d)", name, e.Action, e.Seq)
}

// execution interprets one action's effect tree.
type execution[S, A any] struct {
	rt     *runtime[S, A]
	task   *Task
	seq    int64
	origin A

	// launching is true while the tree is walked on the draining goroutine.
	// Goroutines requested during the walk are started once it completes,
	// so synchronous sends in the tree are buffered before any of them runs.
	launching bool
	deferred  []func()
}

func (x *execution[S, A]) launch(e effect.Effect[A]) {
	x.start(x.task.ctx, e)
	x.launching = false
	for _, fn := range x.deferred {
		go fn()
	}
	x.deferred = nil
}

// spawn runs fn on a new goroutine counted as effect work of the task.
func (x *execution[S, A]) spawn(fn func()) {
	x.task.hold()
	x.rt.effects.Add(1)
	wrapped := func() {
		defer x.rt.effects.Done()
		defer x.task.release()
		fn()
	}
	if x.launching {
		x.deferred = append(x.deferred, wrapped)
		return
	}
	go wrapped()
}

// start begins e under ctx and returns a channel closed when e completes,
// or nil if e completed synchronously.
func (x *execution[S, A]) start(ctx context.Context, e effect.Effect[A]) <-chan struct{} {
	switch e.Kind() {
	case effect.KindNone:
		return nil

	case effect.KindSend:
		if ctx.Err() == nil {
			x.deliver(e.Action())
		}
		return nil

	case effect.KindCancel:
		x.rt.cancel(e.IDs()...)
		return nil

	case effect.KindRun:
		return x.run(ctx, e)

	case effect.KindMerge:
		var waits []<-chan struct{}
		for _, c := range e.Children() {
			if w := x.start(ctx, c); w != nil {
				waits = append(waits, w)
			}
		}
		return joinAll(waits)

	case effect.KindConcatenate:
		children := e.Children()
		for i, c := range children {
			if ctx.Err() != nil {
				return nil
			}
			w := x.start(ctx, c)
			if w == nil {
				continue
			}
			rest := children[i+1:]
			if len(rest) == 0 {
				return w
			}
			done := make(chan struct{})
			x.spawn(func() {
				defer close(done)
				<-w
				x.sequence(ctx, rest)
			})
			return done
		}
		return nil

	case effect.KindCancellable:
		if e.CancelInFlight() {
			x.rt.cancel(e.ID())
		}
		cctx, cancel := context.WithCancel(ctx)
		entry := x.rt.register(e.ID(), cancel)
		w := x.start(cctx, e.Children()[0])
		if w == nil {
			x.rt.unregister(e.ID(), entry)
			cancel()
			return nil
		}
		id := e.ID()
		go func() {
			<-w
			x.rt.unregister(id, entry)
			cancel()
		}()
		return w

	default:
		return nil
	}
}

// sequence runs effects one after another from an effect goroutine.
func (x *execution[S, A]) sequence(ctx context.Context, effects []effect.Effect[A]) {
	for _, e := range effects {
		if ctx.Err() != nil {
			return
		}
		if e.Kind() == effect.KindMerge {
			x.branches(ctx, e.Children())
			continue
		}
		if w := x.start(ctx, e); w != nil {
			<-w
		}
	}
}

// branches starts merged effects together and blocks until all complete.
func (x *execution[S, A]) branches(ctx context.Context, effects []effect.Effect[A]) {
	var g errgroup.Group
	for _, e := range effects {
		if w := x.start(ctx, e); w != nil {
			g.Go(func() error {
				<-w
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (x *execution[S, A]) run(ctx context.Context, e effect.Effect[A]) <-chan struct{} {
	rctx, cancel := context.WithCancel(ctx)
	rec := x.rt.track(x, e.Name())
	done := make(chan struct{})

	var finished atomic.Bool
	send := func(a A) {
		if finished.Load() {
			x.rt.report("An action was sent from a completed effect. Action: %T, effect started by %T (seq %d). "+
				"Avoid capturing the send function in long-lived callbacks.",
				a, x.origin, x.seq)
			return
		}
		if rctx.Err() != nil {
			return
		}
		x.deliver(a)
	}

	op, catch := e.Operation(), e.CatchHandler()
	x.spawn(func() {
		defer close(done)
		defer x.rt.untrack(rec)
		defer cancel()
		defer finished.Store(true)

		err := op(rctx, send)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, context.DeadlineExceeded) && rctx.Err() != nil {
			return
		}
		if catch != nil {
			catch(err, send)
			return
		}
		x.rt.report("An effect returned an unhandled error: %v. Effect started by %T (seq %d). "+
			"Handle errors inside the effect or pass effect.Catch.",
			err, x.origin, x.seq)
	})
	return done
}

// deliver routes an effect's action into the store: buffered directly while
// launching on the draining goroutine, through the scheduler otherwise.
func (x *execution[S, A]) deliver(a A) {
	if x.launching {
		x.task.adopt(x.rt.send(a, OriginEffect, x.seq))
		return
	}
	x.task.hold()
	ok := x.rt.scheduler.Schedule(func() {
		defer x.task.release()
		x.task.adopt(x.rt.send(a, OriginEffect, x.seq))
	})
	if !ok {
		x.task.release()
		x.rt.logger.Warn("scheduler rejected effect action",
			"action", fmt.Sprintf("%T", a),
			"seq", x.seq,
		)
	}
}

func joinAll(waits []<-chan struct{}) <-chan struct{} {
	switch len(waits) {
	case 0:
		return nil
	case 1:
		return waits[0]
	}
	var g errgroup.Group
	for _, w := range waits {
		g.Go(func() error {
			<-w
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Wait()
	}()
	return done
}

func (rt *runtime[S, A]) register(id any, cancel context.CancelFunc) *cancellation {
	c := &cancellation{cancel: cancel}
	rt.effectsMu.Lock()
	defer rt.effectsMu.Unlock()
	set, ok := rt.cancellations[id]
	if !ok {
		set = make(map[*cancellation]struct{})
		rt.cancellations[id] = set
	}
	set[c] = struct{}{}
	return c
}

func (rt *runtime[S, A]) unregister(id any, c *cancellation) {
	rt.effectsMu.Lock()
	defer rt.effectsMu.Unlock()
	set, ok := rt.cancellations[id]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(rt.cancellations, id)
	}
}

// cancel cancels every live registration for ids.
func (rt *runtime[S, A]) cancel(ids ...any) {
	var cancels []context.CancelFunc
	rt.effectsMu.Lock()
	for _, id := range ids {
		for c := range rt.cancellations[id] {
			cancels = append(cancels, c.cancel)
		}
		delete(rt.cancellations, id)
	}
	rt.effectsMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (rt *runtime[S, A]) track(x *execution[S, A], name string) *running {
	rt.effectsMu.Lock()
	defer rt.effectsMu.Unlock()
	rt.effectSeq++
	r := &running{id: rt.effectSeq, name: name, seq: x.seq, action: x.origin, task: x.task}
	rt.inFlight[r] = struct{}{}
	return r
}

func (rt *runtime[S, A]) untrack(r *running) {
	rt.effectsMu.Lock()
	defer rt.effectsMu.Unlock()
	delete(rt.inFlight, r)
}

// effectsInFlight lists running effects ordered by start.
func (rt *runtime[S, A]) effectsInFlight(filter func(*running) bool) []EffectInfo {
	rt.effectsMu.Lock()
	defer rt.effectsMu.Unlock()
	out := make([]EffectInfo, 0, len(rt.inFlight))
	for r := range rt.inFlight {
		if filter != nil && !filter(r) {
			continue
		}
		out = append(out, EffectInfo{ID: r.id, Name: r.name, Seq: r.seq, Action: r.action})
	}
	slices.SortFunc(out, func(a, b EffectInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (rt *runtime[S, A]) outstanding(t *Task) []EffectInfo {
	return rt.effectsInFlight(func(r *running) bool { return r.task.isDescendantOf(t) })
}
