// Package reducer defines the Reducer contract and the combinators that
// compose child features into parent features.
//
// A reducer mutates state in place for one action and returns the effect to
// run afterwards. Reducers never block and never perform side effects
// directly; everything asynchronous is described by the returned effect.
//
// Combinators that embed a child (ForEach, IfLet, IfCaseLet, Presents,
// ForEachStack) namespace the child's cancellation ids with a token unique
// to the combinator instance and to the child's identity, so that removing a
// child cancels exactly its own effects and sibling children never cancel
// each other.
package reducer

import (
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/optic"
)

// Reducer evolves state S in response to actions A.
type Reducer[S, A any] interface {
	Reduce(state *S, action A, deps *dependency.Values) effect.Effect[A]
}

// Func adapts a function to a Reducer.
type Func[S, A any] func(state *S, action A, deps *dependency.Values) effect.Effect[A]

// Reduce implements Reducer.
func (f Func[S, A]) Reduce(state *S, action A, deps *dependency.Values) effect.Effect[A] {
	return f(state, action, deps)
}

// Empty returns a reducer that does nothing.
func Empty[S, A any]() Reducer[S, A] {
	return Func[S, A](func(*S, A, *dependency.Values) effect.Effect[A] {
		return effect.None[A]()
	})
}

type combined[S, A any] []Reducer[S, A]

func (c combined[S, A]) Reduce(state *S, action A, deps *dependency.Values) effect.Effect[A] {
	effects := make([]effect.Effect[A], 0, len(c))
	for _, r := range c {
		effects = append(effects, r.Reduce(state, action, deps))
	}
	return effect.Merge(effects...)
}

// Combine runs reducers in order against the same state and action and
// merges their effects.
func Combine[S, A any](reducers ...Reducer[S, A]) Reducer[S, A] {
	switch len(reducers) {
	case 0:
		return Empty[S, A]()
	case 1:
		return reducers[0]
	default:
		return combined[S, A](reducers)
	}
}

// Pullback lifts a child reducer into a parent domain. Actions that do not
// extract to the child's action type leave state untouched and produce no
// effect.
func Pullback[P, PA, C, CA any](
	child Reducer[C, CA],
	state optic.Lens[P, C],
	action optic.Prism[PA, CA],
) Reducer[P, PA] {
	return Func[P, PA](func(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
		ca, ok := action.Extract(a)
		if !ok {
			return effect.None[PA]()
		}
		c := state.Get(*p)
		eff := child.Reduce(&c, ca, deps)
		state.Set(p, c)
		return effect.Map(eff, action.Embed)
	})
}

// Filter runs r only for state and action pairs matching pred.
func Filter[S, A any](r Reducer[S, A], pred func(state S, action A) bool) Reducer[S, A] {
	return Func[S, A](func(s *S, a A, deps *dependency.Values) effect.Effect[A] {
		if !pred(*s, a) {
			return effect.None[A]()
		}
		return r.Reduce(s, a, deps)
	})
}

// WithDependencies runs r with overrides applied to its dependency context.
// Effects returned by r capture the overridden values.
func WithDependencies[S, A any](r Reducer[S, A], overrides ...dependency.Override) Reducer[S, A] {
	return Func[S, A](func(s *S, a A, deps *dependency.Values) effect.Effect[A] {
		return r.Reduce(s, a, deps.With(overrides...))
	})
}

// OnChange runs base and then, when the projection of state differs between
// before and after base ran, the reducer built by then from the old and new
// values.
func OnChange[S, A, V any](
	base Reducer[S, A],
	project func(S) V,
	equal func(a, b V) bool,
	then func(oldValue, newValue V) Reducer[S, A],
) Reducer[S, A] {
	return Func[S, A](func(s *S, a A, deps *dependency.Values) effect.Effect[A] {
		oldValue := project(*s)
		eff := base.Reduce(s, a, deps)
		newValue := project(*s)
		if equal(oldValue, newValue) {
			return eff
		}
		return effect.Merge(eff, then(oldValue, newValue).Reduce(s, a, deps))
	})
}

// OnChangeOf is OnChange for comparable projections.
func OnChangeOf[S, A any, V comparable](
	base Reducer[S, A],
	project func(S) V,
	then func(oldValue, newValue V) Reducer[S, A],
) Reducer[S, A] {
	return OnChange(base, project, func(a, b V) bool { return a == b }, then)
}

func reporter(deps *dependency.Values) issue.Reporter {
	return dependency.Get(deps, dependency.Issues)
}
