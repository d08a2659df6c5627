// Package ident provides an ordered collection addressed by element identity.
package ident

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Identifiable is implemented by values that carry a stable identity.
type Identifiable[ID comparable] interface {
	Identity() ID
}

// Array is an ordered collection of elements with unique identities.
// Lookup by id is O(1).
//
// Array is a value. Copies share storage until one of them is mutated:
// every mutator first copies the storage it writes, so a copy taken earlier
// (a state snapshot, the value OnChange compares against) never observes a
// later change and may be read from other goroutines. Mutations are O(n).
// The empty Array is ready to use.
type Array[ID comparable, E Identifiable[ID]] struct {
	ids   []ID
	elems map[ID]E
}

// NewArray builds an array from elems. When two elements share an identity,
// the later value wins and keeps the position of the first.
func NewArray[ID comparable, E Identifiable[ID]](elems ...E) Array[ID, E] {
	var a Array[ID, E]
	for _, e := range elems {
		a.UpdateOrAppend(e)
	}
	return a
}

// Len returns the number of elements.
func (a Array[ID, E]) Len() int { return len(a.ids) }

// IDs returns the identities in order.
func (a Array[ID, E]) IDs() []ID { return slices.Clone(a.ids) }

// Elements returns the elements in order.
func (a Array[ID, E]) Elements() []E {
	if len(a.ids) == 0 {
		return nil
	}
	out := make([]E, len(a.ids))
	for i, id := range a.ids {
		out[i] = a.elems[id]
	}
	return out
}

// All iterates over ids and elements in order.
func (a Array[ID, E]) All() iter.Seq2[ID, E] {
	return func(yield func(ID, E) bool) {
		for _, id := range a.ids {
			if !yield(id, a.elems[id]) {
				return
			}
		}
	}
}

// At returns the element at position i. It panics if i is out of range.
func (a Array[ID, E]) At(i int) E { return a.elems[a.ids[i]] }

// Get returns the element with identity id.
func (a Array[ID, E]) Get(id ID) (E, bool) {
	e, ok := a.elems[id]
	return e, ok
}

// Contains reports whether an element with identity id exists.
func (a Array[ID, E]) Contains(id ID) bool {
	_, ok := a.elems[id]
	return ok
}

// Index returns the position of id.
func (a Array[ID, E]) Index(id ID) (int, bool) {
	if !a.Contains(id) {
		return -1, false
	}
	return slices.Index(a.ids, id), true
}

// Append adds e at the end. It returns false, leaving the array unchanged,
// when an element with the same identity already exists.
func (a *Array[ID, E]) Append(e E) bool {
	return a.Insert(e, len(a.ids))
}

// Insert adds e at position i, clamped to the valid range. It returns false
// when an element with the same identity already exists.
func (a *Array[ID, E]) Insert(e E, i int) bool {
	id := e.Identity()
	if a.Contains(id) {
		return false
	}
	i = max(0, min(i, len(a.ids)))
	a.own()
	a.ids = slices.Insert(a.ids, i, id)
	a.elems[id] = e
	return true
}

// UpdateOrAppend replaces the element with e's identity in place, or appends
// e. It returns the replaced element and whether one existed.
func (a *Array[ID, E]) UpdateOrAppend(e E) (E, bool) {
	id := e.Identity()
	if old, ok := a.elems[id]; ok {
		a.own()
		a.elems[id] = e
		return old, true
	}
	a.Append(e)
	var zero E
	return zero, false
}

// Update mutates the element with identity id in place. It returns false
// when no such element exists. fn must not change the element's identity.
func (a *Array[ID, E]) Update(id ID, fn func(*E)) bool {
	e, ok := a.elems[id]
	if !ok {
		return false
	}
	fn(&e)
	if e.Identity() != id {
		panic(fmt.Sprintf("ident: update changed element identity from %v to %v", id, e.Identity()))
	}
	a.own()
	a.elems[id] = e
	return true
}

// Remove deletes the element with identity id. Removing an absent id is a
// no-op that returns false.
func (a *Array[ID, E]) Remove(id ID) (E, bool) {
	e, ok := a.elems[id]
	if !ok {
		return e, false
	}
	a.own()
	a.ids = slices.DeleteFunc(a.ids, func(x ID) bool { return x == id })
	delete(a.elems, id)
	a.normalize()
	return e, true
}

// RemoveAt deletes and returns the element at position i. It panics if i is
// out of range.
func (a *Array[ID, E]) RemoveAt(i int) E {
	id := a.ids[i]
	e := a.elems[id]
	a.own()
	a.ids = slices.Delete(a.ids, i, i+1)
	delete(a.elems, id)
	a.normalize()
	return e
}

// RemoveAll deletes every element matching pred and returns how many were
// removed.
func (a *Array[ID, E]) RemoveAll(pred func(E) bool) int {
	n := 0
	a.own()
	a.ids = slices.DeleteFunc(a.ids, func(id ID) bool {
		if pred(a.elems[id]) {
			delete(a.elems, id)
			n++
			return true
		}
		return false
	})
	a.normalize()
	return n
}

// Move relocates the element with identity id to position to, clamped to
// the valid range.
func (a *Array[ID, E]) Move(id ID, to int) bool {
	from, ok := a.Index(id)
	if !ok {
		return false
	}
	a.ids = slices.Clone(a.ids)
	a.ids = slices.Delete(a.ids, from, from+1)
	to = max(0, min(to, len(a.ids)))
	a.ids = slices.Insert(a.ids, to, id)
	return true
}

// Sort orders elements by cmp, keeping equal elements in their current order.
func (a *Array[ID, E]) Sort(cmp func(x, y E) int) {
	a.ids = slices.Clone(a.ids)
	slices.SortStableFunc(a.ids, func(x, y ID) int {
		return cmp(a.elems[x], a.elems[y])
	})
}

// Filter returns a new array of the elements matching pred.
func (a Array[ID, E]) Filter(pred func(E) bool) Array[ID, E] {
	var out Array[ID, E]
	for _, id := range a.ids {
		if e := a.elems[id]; pred(e) {
			out.Append(e)
		}
	}
	return out
}

// Clone returns a copy with its own storage. Elements are copied shallowly.
func (a Array[ID, E]) Clone() Array[ID, E] {
	if len(a.ids) == 0 {
		return Array[ID, E]{}
	}
	a.own()
	return a
}

// MarshalJSON encodes the array as a JSON array of its elements in order.
func (a Array[ID, E]) MarshalJSON() ([]byte, error) {
	elems := a.Elements()
	if elems == nil {
		elems = []E{}
	}
	return json.Marshal(elems)
}

// UnmarshalJSON decodes a JSON array of elements.
func (a *Array[ID, E]) UnmarshalJSON(data []byte) error {
	var elems []E
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("decode identified array: %w", err)
	}
	*a = NewArray[ID, E](elems...)
	return nil
}

// own replaces a's storage with a private copy. Storage is never written
// after it has been shared, so readers of older copies need no lock.
func (a *Array[ID, E]) own() {
	a.ids = slices.Clone(a.ids)
	elems := make(map[ID]E, len(a.elems)+1)
	maps.Copy(elems, a.elems)
	a.elems = elems
}

// normalize resets an emptied array to its zero value so that arrays with
// equal contents are also deeply equal.
func (a *Array[ID, E]) normalize() {
	if len(a.ids) == 0 {
		a.ids = nil
		a.elems = nil
	}
}
