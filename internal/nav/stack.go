// Package nav holds the state and action shapes for navigation: stacks of
// screens and presented children.
package nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// StackElementID identifies an element of a StackState. Ids are assigned by
// the stack from a monotonic counter and never reused within that stack.
type StackElementID uint64

// String renders the id as "#n".
func (id StackElementID) String() string {
	return "#" + strconv.FormatUint(uint64(id), 10)
}

var (
	// ErrDuplicateID is returned by Push when the id is already on the stack.
	ErrDuplicateID = errors.New("stack element id already present")
	// ErrStaleID is returned by Push when the id was issued earlier and may
	// belong to a popped element.
	ErrStaleID = errors.New("stack element id was previously issued")
)

// StackState is an ordered stack of child states with generated ids.
//
// Like ident.Array, a StackState is a value: mutators copy the storage they
// write, so earlier copies never change.
type StackState[S any] struct {
	ids   []StackElementID
	elems map[StackElementID]S
	next  StackElementID
}

// NewStack builds a stack from states, assigning ids #0, #1, and so on.
func NewStack[S any](states ...S) StackState[S] {
	var s StackState[S]
	for _, st := range states {
		s.Append(st)
	}
	return s
}

// Len returns the number of elements.
func (s StackState[S]) Len() int { return len(s.ids) }

// IDs returns the element ids, bottom first.
func (s StackState[S]) IDs() []StackElementID { return slices.Clone(s.ids) }

// NextID returns the id the next Append will assign.
func (s StackState[S]) NextID() StackElementID { return s.next }

// Elements returns the states, bottom first.
func (s StackState[S]) Elements() []S {
	if len(s.ids) == 0 {
		return nil
	}
	out := make([]S, len(s.ids))
	for i, id := range s.ids {
		out[i] = s.elems[id]
	}
	return out
}

// Get returns the state with id.
func (s StackState[S]) Get(id StackElementID) (S, bool) {
	v, ok := s.elems[id]
	return v, ok
}

// Contains reports whether id is on the stack.
func (s StackState[S]) Contains(id StackElementID) bool {
	_, ok := s.elems[id]
	return ok
}

// Last returns the top of the stack.
func (s StackState[S]) Last() (StackElementID, S, bool) {
	if len(s.ids) == 0 {
		var zero S
		return 0, zero, false
	}
	id := s.ids[len(s.ids)-1]
	return id, s.elems[id], true
}

// Append pushes state with a freshly generated id and returns the id.
func (s *StackState[S]) Append(state S) StackElementID {
	id := s.next
	s.next++
	s.insert(id, state)
	return id
}

// Push adds state under a caller-chosen id, typically one obtained from
// NextID. It fails without modifying the stack if id is already present or
// was issued before.
func (s *StackState[S]) Push(id StackElementID, state S) error {
	if s.Contains(id) {
		return fmt.Errorf("push %s: %w", id, ErrDuplicateID)
	}
	if id < s.next {
		return fmt.Errorf("push %s: %w", id, ErrStaleID)
	}
	s.next = id + 1
	s.insert(id, state)
	return nil
}

// Update mutates the state with id in place.
func (s *StackState[S]) Update(id StackElementID, fn func(*S)) bool {
	v, ok := s.elems[id]
	if !ok {
		return false
	}
	fn(&v)
	s.own()
	s.elems[id] = v
	return true
}

// PopLast removes the top of the stack.
func (s *StackState[S]) PopLast() (S, bool) {
	if len(s.ids) == 0 {
		var zero S
		return zero, false
	}
	id := s.ids[len(s.ids)-1]
	v := s.elems[id]
	s.removeIDs([]StackElementID{id})
	return v, true
}

// PopFrom removes the element with id and everything above it.
func (s *StackState[S]) PopFrom(id StackElementID) bool {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return false
	}
	s.removeIDs(slices.Clone(s.ids[i:]))
	return true
}

// PopTo removes everything above the element with id.
func (s *StackState[S]) PopTo(id StackElementID) bool {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return false
	}
	s.removeIDs(slices.Clone(s.ids[i+1:]))
	return true
}

// Remove deletes the elements with the given ids wherever they are.
func (s *StackState[S]) Remove(ids ...StackElementID) {
	s.removeIDs(ids)
}

// RemoveAll empties the stack. The id counter is kept.
func (s *StackState[S]) RemoveAll() {
	s.ids = nil
	s.elems = nil
}

// Clone returns an independent copy with the same id counter.
func (s StackState[S]) Clone() StackState[S] {
	if len(s.ids) == 0 {
		return StackState[S]{next: s.next}
	}
	s.own()
	return s
}

type stackEntry[S any] struct {
	ID    StackElementID `json:"id"`
	State S              `json:"state"`
}

// MarshalJSON encodes the stack as an array of {id, state} objects.
func (s StackState[S]) MarshalJSON() ([]byte, error) {
	entries := make([]stackEntry[S], 0, len(s.ids))
	for _, id := range s.ids {
		entries = append(entries, stackEntry[S]{ID: id, State: s.elems[id]})
	}
	return json.Marshal(entries)
}

// own replaces s's storage with a private copy before a write.
func (s *StackState[S]) own() {
	s.ids = slices.Clone(s.ids)
	elems := make(map[StackElementID]S, len(s.elems)+1)
	maps.Copy(elems, s.elems)
	s.elems = elems
}

func (s *StackState[S]) insert(id StackElementID, state S) {
	s.own()
	s.ids = append(s.ids, id)
	s.elems[id] = state
}

func (s *StackState[S]) removeIDs(ids []StackElementID) {
	if !slices.ContainsFunc(ids, s.Contains) {
		return
	}
	s.own()
	for _, id := range ids {
		delete(s.elems, id)
	}
	s.ids = slices.DeleteFunc(s.ids, func(x StackElementID) bool {
		return slices.Contains(ids, x)
	})
	if len(s.ids) == 0 {
		s.ids = nil
		s.elems = nil
	}
}

// StackActionKind discriminates StackAction.
type StackActionKind uint8

const (
	// StackElement routes an action to one element.
	StackElement StackActionKind = iota + 1
	// StackPopFrom pops the element and everything above it.
	StackPopFrom
	// StackPush pushes a state under a given id.
	StackPush
)

// String returns the kind name.
func (k StackActionKind) String() string {
	switch k {
	case StackElement:
		return "element"
	case StackPopFrom:
		return "popFrom"
	case StackPush:
		return "push"
	default:
		return fmt.Sprintf("StackActionKind(%d)", k)
	}
}

// StackAction is the action a parent embeds to drive a stack of S.
type StackAction[S, A any] struct {
	Kind   StackActionKind
	ID     StackElementID
	Action A
	State  S
}

// Element routes action to the element with id.
func Element[S, A any](id StackElementID, action A) StackAction[S, A] {
	return StackAction[S, A]{Kind: StackElement, ID: id, Action: action}
}

// PopFrom pops the element with id and everything above it.
func PopFrom[S, A any](id StackElementID) StackAction[S, A] {
	return StackAction[S, A]{Kind: StackPopFrom, ID: id}
}

// Push pushes state under id.
func Push[S, A any](id StackElementID, state S) StackAction[S, A] {
	return StackAction[S, A]{Kind: StackPush, ID: id, State: state}
}

// ElementAction routes an action to the element of an identified collection.
type ElementAction[ID comparable, A any] struct {
	ID     ID
	Action A
}
