package optic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type inner struct{ N int }

type outer struct {
	Name  string
	Inner inner
}

type shape interface{ isShape() }

type circle struct{ R int }
type square struct{ S int }

func (circle) isShape() {}
func (square) isShape() {}
func (circle) Tag() string { return "circle" }

type wrapper interface{ isWrapper() }
type wrapped struct{ Shape shape }

func (wrapped) isWrapper() {}

func TestFieldLens(t *testing.T) {
	name := Field(func(o *outer) *string { return &o.Name })
	o := outer{Name: "a"}
	assert.Equal(t, "a", name.Get(o))
	name.Set(&o, "b")
	assert.Equal(t, "b", o.Name)

	name.Modify(&o, func(s *string) { *s += "!" })
	assert.Equal(t, "b!", o.Name)
}

func TestComposeLens(t *testing.T) {
	n := Compose(
		Field(func(o *outer) *inner { return &o.Inner }),
		Field(func(i *inner) *int { return &i.N }),
	)
	o := outer{}
	n.Set(&o, 5)
	assert.Equal(t, 5, o.Inner.N)
	assert.Equal(t, 5, n.Get(o))

	id := Identity[int]()
	v := 1
	id.Set(&v, 2)
	assert.Equal(t, 2, id.Get(v))
}

func TestCasePrism(t *testing.T) {
	c := Case[shape, circle]()
	var s shape = circle{R: 2}
	got, ok := c.Extract(s)
	assert.True(t, ok)
	assert.Equal(t, circle{R: 2}, got)

	_, ok = c.Extract(square{S: 1})
	assert.False(t, ok)
	assert.Equal(t, shape(circle{R: 3}), c.Embed(circle{R: 3}))
}

func TestComposePrism(t *testing.T) {
	w := Prism[wrapper, shape]{
		Embed: func(s shape) wrapper { return wrapped{Shape: s} },
		Extract: func(w wrapper) (shape, bool) {
			v, ok := w.(wrapped)
			return v.Shape, ok
		},
	}
	p := ComposePrism(w, Case[shape, circle]())

	got, ok := p.Extract(wrapped{Shape: circle{R: 1}})
	assert.True(t, ok)
	assert.Equal(t, 1, got.R)
	_, ok = p.Extract(wrapped{Shape: square{}})
	assert.False(t, ok)
	assert.Equal(t, wrapper(wrapped{Shape: circle{R: 9}}), p.Embed(circle{R: 9}))
}

func TestTagOf(t *testing.T) {
	tag, ok := TagOf(circle{})
	assert.True(t, ok)
	assert.Equal(t, "circle", tag)
	_, ok = TagOf(square{})
	assert.False(t, ok)
}
