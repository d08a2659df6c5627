package nav

import (
	"encoding/json"
	"fmt"
)

// PresentationState holds an optional presented child.
//
// Each presentation carries a generation stamped by the presenting
// combinator. Replacing the child with Present starts a new generation, which
// the combinator treats as a different logical instance even if the new
// value equals the old one.
type PresentationState[S any] struct {
	value      *S
	generation uint64
}

// Presented returns a presentation of v.
func Presented[S any](v S) PresentationState[S] {
	return PresentationState[S]{value: &v}
}

// Dismissed returns an empty presentation.
func Dismissed[S any]() PresentationState[S] {
	return PresentationState[S]{}
}

// IsPresented reports whether a child is presented.
func (p PresentationState[S]) IsPresented() bool { return p.value != nil }

// Get returns a copy of the presented child.
func (p PresentationState[S]) Get() (S, bool) {
	if p.value == nil {
		var zero S
		return zero, false
	}
	return *p.value, true
}

// Wrapped returns the presented child's storage, or nil when nothing is
// presented. The storage may be shared with earlier copies of p: read
// through it, and mutate with Modify.
func (p PresentationState[S]) Wrapped() *S { return p.value }

// Generation returns the stamped generation, or zero when the presentation
// has not been seen by a presenting reducer yet.
func (p PresentationState[S]) Generation() uint64 { return p.generation }

// Present replaces the child with v as a new logical instance.
func (p *PresentationState[S]) Present(v S) {
	p.value = &v
	p.generation = 0
}

// Dismiss clears the child.
func (p *PresentationState[S]) Dismiss() {
	p.value = nil
	p.generation = 0
}

// Modify mutates a copy of the presented child and stores it, keeping the
// presentation's identity.
// It returns false when nothing is presented.
func (p *PresentationState[S]) Modify(fn func(*S)) bool {
	if p.value == nil {
		return false
	}
	v := *p.value
	fn(&v)
	p.value = &v
	return true
}

// Stamp assigns a generation to an unstamped presentation. Stamping an
// empty or already stamped presentation does nothing.
func (p *PresentationState[S]) Stamp(generation uint64) {
	if p.value != nil && p.generation == 0 {
		p.generation = generation
	}
}

// MarshalJSON encodes the presented child, or null.
func (p PresentationState[S]) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}

// UnmarshalJSON decodes a presented child; null dismisses.
func (p *PresentationState[S]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		p.Dismiss()
		return nil
	}
	var v S
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode presentation: %w", err)
	}
	p.Present(v)
	return nil
}

// String renders the child for debugging.
func (p PresentationState[S]) String() string {
	if p.value == nil {
		return "<dismissed>"
	}
	return fmt.Sprintf("%+v@%d", *p.value, p.generation)
}

// PresentationActionKind discriminates PresentationAction.
type PresentationActionKind uint8

const (
	// PresentationDismiss dismisses the presented child.
	PresentationDismiss PresentationActionKind = iota + 1
	// PresentationPresented routes an action to the presented child.
	PresentationPresented
)

// PresentationAction is the action a parent embeds to drive a presented
// child with actions of type A.
type PresentationAction[A any] struct {
	Kind   PresentationActionKind
	Action A
}

// PresentedAction routes action to the presented child.
func PresentedAction[A any](action A) PresentationAction[A] {
	return PresentationAction[A]{Kind: PresentationPresented, Action: action}
}

// DismissAction dismisses the presented child.
func DismissAction[A any]() PresentationAction[A] {
	return PresentationAction[A]{Kind: PresentationDismiss}
}

// IsDismiss reports whether a is a dismissal.
func (a PresentationAction[A]) IsDismiss() bool { return a.Kind == PresentationDismiss }
