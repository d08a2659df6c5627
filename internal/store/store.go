package store

import (
	"context"
	"sync"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/reducer"
)

// root is the non-generic part of a runtime shared by every store in a tree.
type root interface {
	subscribe(fn func()) func()
	effectsInFlight(filter func(*running) bool) []EffectInfo
	close()
	shutdown(ctx context.Context) error
	sequence() int64
	dependencies() *dependency.Values
	reporter() issue.Reporter
}

// Store holds state of type S and accepts actions of type A.
type Store[S, A any] struct {
	root root
	view func(fn func(S, bool))
	send func(A) *Task

	lastMu  sync.Mutex
	last    S
	hasLast bool
}

// New creates a root store.
func New[S, A any](initial S, r reducer.Reducer[S, A], opts ...Option) *Store[S, A] {
	rt := newRuntime(initial, r, newConfig(opts))
	return &Store[S, A]{
		root: rt,
		view: rt.view,
		send: func(a A) *Task { return rt.send(a, OriginSend, 0) },
	}
}

// Send processes action, or buffers it if the store is already processing,
// and returns a task covering the work it starts.
func (s *Store[S, A]) Send(action A) *Task {
	return s.send(action)
}

// State returns a snapshot of the current state. For a store derived with
// ScopeIf whose state has become absent it returns the last state observed.
func (s *Store[S, A]) State() S {
	var (
		out     S
		present bool
	)
	s.view(func(st S, ok bool) { out, present = st, ok })

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if present {
		s.last, s.hasLast = out, true
		return out
	}
	return s.last
}

// WithState calls fn with the current state under the state read lock and
// reports whether the state was present. fn must not call Send.
func (s *Store[S, A]) WithState(fn func(S)) bool {
	var present bool
	s.view(func(st S, ok bool) {
		present = ok
		if ok {
			fn(st)
		}
	})
	return present
}

// Present reports whether the store's state currently exists. It is always
// true for root stores and stores derived with Scope.
func (s *Store[S, A]) Present() bool {
	var present bool
	s.view(func(_ S, ok bool) { present = ok })
	return present
}

// Subscribe calls fn with the state after every batch of processed actions,
// while the state is present. It returns a function that unsubscribes.
func (s *Store[S, A]) Subscribe(fn func(S)) (cancel func()) {
	return s.root.subscribe(func() {
		var (
			st      S
			present bool
		)
		s.view(func(v S, ok bool) { st, present = v, ok })
		if present {
			fn(st)
		}
	})
}

// InFlight lists the effects still running anywhere in the store tree.
func (s *Store[S, A]) InFlight() []EffectInfo {
	return s.root.effectsInFlight(nil)
}

// Seq returns the number of actions processed so far.
func (s *Store[S, A]) Seq() int64 {
	return s.root.sequence()
}

// Dependencies returns the root dependency context.
func (s *Store[S, A]) Dependencies() *dependency.Values {
	return s.root.dependencies()
}

// Close cancels every running effect. Later sends are reported and dropped.
func (s *Store[S, A]) Close() {
	s.root.close()
}

// Shutdown closes the store and waits for its effects to return.
func (s *Store[S, A]) Shutdown(ctx context.Context) error {
	return s.root.shutdown(ctx)
}

// Scope derives a store that reads extract(state) and sends embed(action)
// to parent.
func Scope[S, A, C, CA any](parent *Store[S, A], extract func(S) C, embed func(CA) A) *Store[C, CA] {
	return &Store[C, CA]{
		root: parent.root,
		view: func(fn func(C, bool)) {
			parent.view(func(s S, ok bool) {
				if !ok {
					var zero C
					fn(zero, false)
					return
				}
				fn(extract(s), true)
			})
		},
		send: func(ca CA) *Task { return parent.send(embed(ca)) },
	}
}

// ScopeIf derives a store for optional child state. It reports whether the
// child state is present now. Sending through the derived store while its
// state is absent reports an issue and does nothing.
func ScopeIf[S, A, C, CA any](parent *Store[S, A], extract func(S) (C, bool), embed func(CA) A) (*Store[C, CA], bool) {
	child := &Store[C, CA]{
		root: parent.root,
		view: func(fn func(C, bool)) {
			parent.view(func(s S, ok bool) {
				if !ok {
					var zero C
					fn(zero, false)
					return
				}
				fn(extract(s))
			})
		},
	}
	child.send = func(ca CA) *Task {
		if !child.Present() {
			issue.Reportf(parent.root.reporter(),
				"A scoped store received an action after its state became absent. Action: %T. "+
					"This usually means a view kept sending after the parent dismissed the child.",
				ca)
			return completedTask()
		}
		return parent.send(embed(ca))
	}
	return child, child.Present()
}

// Observe calls onChange with project(state) whenever it differs, per
// equal, from the last value observed. It returns a function that stops
// observing.
func Observe[S, A, T any](s *Store[S, A], project func(S) T, equal func(a, b T) bool, onChange func(T)) (cancel func()) {
	var mu sync.Mutex
	current := project(s.State())
	return s.Subscribe(func(st S) {
		next := project(st)
		mu.Lock()
		if equal(current, next) {
			mu.Unlock()
			return
		}
		current = next
		mu.Unlock()
		onChange(next)
	})
}

// ObserveValue is Observe for comparable projections.
func ObserveValue[S, A any, T comparable](s *Store[S, A], project func(S) T, onChange func(T)) (cancel func()) {
	return Observe(s, project, func(a, b T) bool { return a == b }, onChange)
}
