// Package optic provides explicit accessors that let combinators reach a
// child's state or action inside a parent's.
//
// A Lens focuses on a part of a product type (a struct field). A Prism
// focuses on one case of a sum type: it can always build the parent from the
// child and can try to extract the child from the parent.
package optic

// Lens reads and writes a Value inside a Root.
type Lens[Root, Value any] struct {
	Get func(Root) Value
	Set func(*Root, Value)
}

// Field builds a lens from a function returning a pointer to the field.
//
//	count := optic.Field(func(s *State) *int { return &s.Count })
func Field[Root, Value any](field func(*Root) *Value) Lens[Root, Value] {
	return Lens[Root, Value]{
		Get: func(r Root) Value { return *field(&r) },
		Set: func(r *Root, v Value) { *field(r) = v },
	}
}

// Identity focuses on the whole value.
func Identity[T any]() Lens[T, T] {
	return Lens[T, T]{
		Get: func(t T) T { return t },
		Set: func(t *T, v T) { *t = v },
	}
}

// Modify applies fn to the focused value in place.
func (l Lens[Root, Value]) Modify(r *Root, fn func(*Value)) {
	v := l.Get(*r)
	fn(&v)
	l.Set(r, v)
}

// Compose focuses through outer and then inner.
func Compose[A, B, C any](outer Lens[A, B], inner Lens[B, C]) Lens[A, C] {
	return Lens[A, C]{
		Get: func(a A) C { return inner.Get(outer.Get(a)) },
		Set: func(a *A, c C) {
			b := outer.Get(*a)
			inner.Set(&b, c)
			outer.Set(a, b)
		},
	}
}

// Prism embeds a Value case into a Root and extracts it back.
type Prism[Root, Value any] struct {
	Embed   func(Value) Root
	Extract func(Root) (Value, bool)
}

// Case builds a prism for a sum type modeled as an interface Root with
// concrete case types. Value must implement Root.
//
//	type Action interface{ isAction() }
//	type Increment struct{}
//	inc := optic.Case[Action, Increment]()
func Case[Root, Value any]() Prism[Root, Value] {
	return Prism[Root, Value]{
		Embed: func(v Value) Root { return any(v).(Root) },
		Extract: func(r Root) (Value, bool) {
			v, ok := any(r).(Value)
			return v, ok
		},
	}
}

// ComposePrism focuses through outer and then inner.
func ComposePrism[A, B, C any](outer Prism[A, B], inner Prism[B, C]) Prism[A, C] {
	return Prism[A, C]{
		Embed: func(c C) A { return outer.Embed(inner.Embed(c)) },
		Extract: func(a A) (C, bool) {
			b, ok := outer.Extract(a)
			if !ok {
				var zero C
				return zero, false
			}
			return inner.Extract(b)
		},
	}
}

// Tagged is implemented by sum-type values that name their case. The tag is
// part of a presented child's identity: switching cases is a replacement.
type Tagged interface {
	Tag() string
}

// TagOf returns v's case tag when v implements Tagged.
func TagOf(v any) (string, bool) {
	if t, ok := v.(Tagged); ok {
		return t.Tag(), true
	}
	return "", false
}
