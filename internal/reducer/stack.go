package reducer

import (
	"slices"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/nav"
	"github.com/roach88/composable/internal/optic"
)

type forEachStack[P, PA, C, CA any] struct {
	parent Reducer[P, PA]
	state  optic.Lens[P, nav.StackState[C]]
	action optic.Prism[PA, nav.StackAction[C, CA]]
	child  Reducer[C, CA]
	token  *token
}

// ForEachStack embeds child for every element of a navigation stack.
//
//   - Element actions run child against that element, then parent.
//   - PopFrom runs parent, then removes the target and every element that
//     was above it before parent ran. Elements parent pushed in the same
//     reduction survive.
//   - Push runs parent, then pushes the state under the given id. An id
//     that is present or was issued before is reported as an issue.
//
// Elements leaving the stack have their effects cancelled. Elements joining
// it get a dismiss listener, so they can pop themselves with Dismiss.
func ForEachStack[P, PA, C, CA any](
	parent Reducer[P, PA],
	state optic.Lens[P, nav.StackState[C]],
	action optic.Prism[PA, nav.StackAction[C, CA]],
	child Reducer[C, CA],
) Reducer[P, PA] {
	return &forEachStack[P, PA, C, CA]{
		parent: parent,
		state:  state,
		action: action,
		child:  child,
		token:  newToken("forEachStack"),
	}
}

func (r *forEachStack[P, PA, C, CA]) Reduce(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	before := r.state.Get(*p).IDs()

	var childEffect, parentEffect effect.Effect[PA]
	sa, ok := r.action.Extract(a)
	switch {
	case ok && sa.Kind == nav.StackElement:
		childEffect = r.reduceElement(p, sa, deps)
		parentEffect = r.parent.Reduce(p, a, deps)

	case ok && sa.Kind == nav.StackPopFrom:
		i := slices.Index(before, sa.ID)
		if i < 0 {
			issue.Reportf(reporter(deps),
				"ForEachStack received popFrom for missing element %s. "+
					"This usually means the element was already popped.", sa.ID)
		}
		parentEffect = r.parent.Reduce(p, a, deps)
		if i >= 0 {
			stack := r.state.Get(*p)
			stack.Remove(before[i:]...)
			r.state.Set(p, stack)
		}

	case ok && sa.Kind == nav.StackPush:
		parentEffect = r.parent.Reduce(p, a, deps)
		stack := r.state.Get(*p)
		if err := stack.Push(sa.ID, sa.State); err != nil {
			issue.Reportf(reporter(deps),
				"ForEachStack received push with a reused id: %v. "+
					"Use the stack's NextID to choose an id for a pushed element.", err)
		} else {
			r.state.Set(p, stack)
		}

	default:
		parentEffect = r.parent.Reduce(p, a, deps)
	}

	after := r.state.Get(*p).IDs()
	var cancelled []any
	for _, id := range before {
		if !slices.Contains(after, id) {
			cancelled = append(cancelled, childScope{owner: r.token, child: id})
		}
	}
	effects := []effect.Effect[PA]{childEffect, parentEffect, effect.Cancel[PA](cancelled...)}
	for _, id := range after {
		if !slices.Contains(before, id) {
			effects = append(effects, dismissListener(
				childScope{owner: r.token, child: id},
				r.action.Embed(nav.PopFrom[C, CA](id))))
		}
	}
	return effect.Merge(effects...)
}

func (r *forEachStack[P, PA, C, CA]) reduceElement(p *P, sa nav.StackAction[C, CA], deps *dependency.Values) effect.Effect[PA] {
	stack := r.state.Get(*p)
	var eff effect.Effect[CA]
	if !stack.Update(sa.ID, func(c *C) {
		eff = r.child.Reduce(c, sa.Action, presentedDeps(deps))
	}) {
		issue.Reportf(reporter(deps),
			"ForEachStack received an action for missing element %s. Action: %T. "+
				"This usually means the element was popped before an in-flight effect "+
				"delivered its action.",
			sa.ID, sa.Action)
		return effect.None[PA]()
	}
	r.state.Set(p, stack)

	id := sa.ID
	scope := childScope{owner: r.token, child: id}
	mapped := effect.Map(eff, func(ca CA) PA {
		return r.action.Embed(nav.Element[C](id, ca))
	})
	return effect.Cancellable(effect.Namespace(mapped, scope), scope, false)
}
