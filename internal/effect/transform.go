package effect

import "context"

// Map transforms every action e may emit.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	switch e.kind {
	case KindRun:
		op := e.op
		out := Effect[B]{kind: KindRun, name: e.name}
		out.op = func(ctx context.Context, send Sender[B]) error {
			return op(ctx, func(a A) { send(f(a)) })
		}
		if catch := e.catch; catch != nil {
			out.catch = func(err error, send Sender[B]) {
				catch(err, func(a A) { send(f(a)) })
			}
		}
		return out
	case KindSend:
		return Effect[B]{kind: KindSend, action: f(e.action)}
	case KindMerge, KindConcatenate, KindCancellable:
		children := make([]Effect[B], len(e.children))
		for i, c := range e.children {
			children[i] = Map(c, f)
		}
		return Effect[B]{
			kind:           e.kind,
			children:       children,
			id:             e.id,
			cancelInFlight: e.cancelInFlight,
		}
	case KindCancel:
		return Effect[B]{kind: KindCancel, ids: e.ids}
	default:
		return None[B]()
	}
}

// ScopedID is a cancellation id qualified by the scope that produced it.
type ScopedID struct {
	Scope any
	ID    any
}

// Namespace qualifies every cancellation id in e, both on Cancellable and
// Cancel nodes, with scope. Effects namespaced with different scopes never
// cancel each other even when they use the same literal id.
func Namespace[A any](e Effect[A], scope any) Effect[A] {
	switch e.kind {
	case KindCancellable:
		return Effect[A]{
			kind:           KindCancellable,
			children:       []Effect[A]{Namespace(e.children[0], scope)},
			id:             ScopedID{Scope: scope, ID: e.id},
			cancelInFlight: e.cancelInFlight,
		}
	case KindCancel:
		ids := make([]any, len(e.ids))
		for i, id := range e.ids {
			ids[i] = ScopedID{Scope: scope, ID: id}
		}
		return Effect[A]{kind: KindCancel, ids: ids}
	case KindMerge, KindConcatenate:
		children := make([]Effect[A], len(e.children))
		for i, c := range e.children {
			children[i] = Namespace(c, scope)
		}
		return Effect[A]{kind: e.kind, children: children}
	default:
		return e
	}
}
