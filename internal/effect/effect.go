// Package effect describes side effects returned by reducers.
//
// An Effect is an immutable value: building one performs no work. The store
// interprets the description after each reduction, running asynchronous
// operations on their own goroutines and feeding any actions they emit back
// into the store.
//
// Effects compose as a tree:
//
//	Merge(a, b)                 // run a and b concurrently
//	Concatenate(a, b)           // run b after a completes
//	Cancellable(e, id, false)   // tag e so Cancel(id) can stop it
//	Cancel(id)                  // stop every in-flight effect tagged id
//
// Cancellation ids are arbitrary comparable values. Combinators that embed a
// child feature namespace the ids of the child's effects so that two
// instances of the same child can use the same literal id independently.
package effect

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers an action back into the store. Calling it after the
// effect has been cancelled is a no-op; calling it after the operation has
// returned is reported as an issue.
type Sender[A any] func(action A)

// Operation is the body of an asynchronous effect. It must return when ctx
// is done. Returning context.Canceled is treated as normal cancellation.
type Operation[A any] func(ctx context.Context, send Sender[A]) error

// Kind discriminates effect nodes.
type Kind uint8

const (
	// KindNone does nothing.
	KindNone Kind = iota
	// KindRun runs an Operation on its own goroutine.
	KindRun
	// KindSend emits a single action.
	KindSend
	// KindMerge runs children concurrently.
	KindMerge
	// KindConcatenate runs children one after another.
	KindConcatenate
	// KindCancellable tags its child with a cancellation id.
	KindCancellable
	// KindCancel cancels every in-flight effect tagged with its ids.
	KindCancel
)

var kindNames = [...]string{"none", "run", "send", "merge", "concatenate", "cancellable", "cancel"}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Effect is a description of work that may emit actions of type A.
// The zero value is None.
type Effect[A any] struct {
	kind           Kind
	op             Operation[A]
	catch          func(err error, send Sender[A])
	name           string
	action         A
	children       []Effect[A]
	id             any
	ids            []any
	cancelInFlight bool
}

// None returns an effect that does nothing.
func None[A any]() Effect[A] {
	return Effect[A]{}
}

// RunOption configures a Run effect.
type RunOption[A any] func(*Effect[A])

// Catch handles an error returned by the operation. The sender remains
// usable inside the handler.
func Catch[A any](fn func(err error, send Sender[A])) RunOption[A] {
	return func(e *Effect[A]) { e.catch = fn }
}

// Named labels the operation in diagnostics such as in-flight listings.
func Named[A any](name string) RunOption[A] {
	return func(e *Effect[A]) { e.name = name }
}

// Run wraps an asynchronous operation.
func Run[A any](op Operation[A], opts ...RunOption[A]) Effect[A] {
	e := Effect[A]{kind: KindRun, op: op}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Send emits action synchronously, after the current reduction completes
// and before any other externally sent action is processed.
func Send[A any](action A) Effect[A] {
	return Effect[A]{kind: KindSend, action: action}
}

// Never runs until it is cancelled and never emits.
func Never[A any]() Effect[A] {
	return Run(func(ctx context.Context, _ Sender[A]) error {
		<-ctx.Done()
		return nil
	}, Named[A]("never"))
}

// Merge runs effects concurrently. None children are dropped.
func Merge[A any](effects ...Effect[A]) Effect[A] {
	return group(KindMerge, effects)
}

// Concatenate runs effects in order, each starting after the previous one
// completes. Cancelling the enclosing scope stops the sequence.
func Concatenate[A any](effects ...Effect[A]) Effect[A] {
	return group(KindConcatenate, effects)
}

func group[A any](kind Kind, effects []Effect[A]) Effect[A] {
	var kept []Effect[A]
	for _, e := range effects {
		switch {
		case e.kind == KindNone:
		case e.kind == kind:
			kept = append(kept, e.children...)
		default:
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return None[A]()
	case 1:
		return kept[0]
	default:
		return Effect[A]{kind: kind, children: kept}
	}
}

// Cancellable tags e with id. When cancelInFlight is set, any in-flight
// effect already tagged id is cancelled before e starts. Tagging None yields
// None.
func Cancellable[A any](e Effect[A], id any, cancelInFlight bool) Effect[A] {
	if e.kind == KindNone {
		return e
	}
	return Effect[A]{
		kind:           KindCancellable,
		children:       []Effect[A]{e},
		id:             id,
		cancelInFlight: cancelInFlight,
	}
}

// Cancel stops every in-flight effect tagged with any of ids.
func Cancel[A any](ids ...any) Effect[A] {
	if len(ids) == 0 {
		return None[A]()
	}
	return Effect[A]{kind: KindCancel, ids: ids}
}

// Merge returns Merge(e, others...).
func (e Effect[A]) Merge(others ...Effect[A]) Effect[A] {
	return Merge(append([]Effect[A]{e}, others...)...)
}

// Concatenate returns Concatenate(e, others...).
func (e Effect[A]) Concatenate(others ...Effect[A]) Effect[A] {
	return Concatenate(append([]Effect[A]{e}, others...)...)
}

// Cancellable returns Cancellable(e, id, cancelInFlight).
func (e Effect[A]) Cancellable(id any, cancelInFlight bool) Effect[A] {
	return Cancellable(e, id, cancelInFlight)
}

// Kind returns the node kind.
func (e Effect[A]) Kind() Kind { return e.kind }

// IsNone reports whether e does nothing.
func (e Effect[A]) IsNone() bool { return e.kind == KindNone }

// Operation returns the body of a Run node.
func (e Effect[A]) Operation() Operation[A] { return e.op }

// CatchHandler returns the error handler of a Run node, if any.
func (e Effect[A]) CatchHandler() func(error, Sender[A]) { return e.catch }

// Name returns the label of a Run node.
func (e Effect[A]) Name() string { return e.name }

// Action returns the action of a Send node.
func (e Effect[A]) Action() A { return e.action }

// Children returns the children of a Merge, Concatenate, or Cancellable node.
func (e Effect[A]) Children() []Effect[A] { return e.children }

// ID returns the cancellation id of a Cancellable node.
func (e Effect[A]) ID() any { return e.id }

// IDs returns the ids of a Cancel node.
func (e Effect[A]) IDs() []any { return e.ids }

// CancelInFlight reports whether a Cancellable node cancels its id first.
func (e Effect[A]) CancelInFlight() bool { return e.cancelInFlight }

// String renders the tree shape, for debugging.
func (e Effect[A]) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e Effect[A]) write(b *strings.Builder) {
	switch e.kind {
	case KindRun:
		if e.name != "" {
			fmt.Fprintf(b, "run(%s)", e.name)
			return
		}
		b.WriteString("run")
	case KindSend:
		fmt.Fprintf(b, "send(%T)", e.action)
	case KindMerge, KindConcatenate:
		b.WriteString(e.kind.String())
		b.WriteByte('(')
		for i, c := range e.children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteByte(')')
	case KindCancellable:
		fmt.Fprintf(b, "cancellable[%v](", e.id)
		e.children[0].write(b)
		b.WriteByte(')')
	case KindCancel:
		fmt.Fprintf(b, "cancel%v", e.ids)
	default:
		b.WriteString("none")
	}
}
