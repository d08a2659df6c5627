package reducer

import (
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/nav"
	"github.com/roach88/composable/internal/optic"
)

// dismissID tags the listener a presenting combinator runs for each child.
// A child dismisses itself by cancelling it; the listener then sends the
// dismissal to the parent.
type dismissID struct{}

// Dismiss returns the effect a presented child returns to dismiss itself.
// Called from a feature that is not presented, it reports an issue and
// returns no effect.
func Dismiss[A any](deps *dependency.Values) effect.Effect[A] {
	target := dependency.Get(deps, dependency.Dismiss)
	if !target.Present {
		issue.Reportf(reporter(deps),
			"Dismiss was called from a feature that is not presented. "+
				"Only features embedded with Presents or ForEachStack can dismiss themselves.")
		return effect.None[A]()
	}
	return effect.Cancel[A](target.ID)
}

func presentedDeps(deps *dependency.Values) *dependency.Values {
	return deps.With(dependency.Set(dependency.Dismiss, dependency.DismissTarget{
		ID:      dismissID{},
		Present: true,
	}))
}

// dismissListener waits until the child cancels dismissID and then sends
// dismissal, all inside scope so the whole listener dies with the child.
func dismissListener[A any](scope childScope, dismissal A) effect.Effect[A] {
	listener := effect.Concatenate(
		effect.Cancellable(effect.Never[A](), dismissID{}, false),
		effect.Send(dismissal),
	)
	return effect.Cancellable(effect.Namespace(listener, scope), scope, false)
}

type presentationIdentity struct {
	generation uint64
	tag        string
}

type presents[P, PA, C, CA any] struct {
	parent Reducer[P, PA]
	state  optic.Lens[P, nav.PresentationState[C]]
	action optic.Prism[PA, nav.PresentationAction[CA]]
	child  Reducer[C, CA]
	token  *token
}

// Presents embeds a child that the parent presents and dismisses.
//
// The child runs first for presented actions, then the parent. A dismiss
// action runs the parent first and clears the presentation only if the
// parent left the same presentation in place, so the parent can re-present
// at the dismiss site. Each presentation gets an identity from a stamped
// generation and the child's optic.Tagged discriminant; when the identity
// changes the old child's effects are cancelled and a new dismiss listener
// starts for the new child.
func Presents[P, PA, C, CA any](
	parent Reducer[P, PA],
	state optic.Lens[P, nav.PresentationState[C]],
	action optic.Prism[PA, nav.PresentationAction[CA]],
	child Reducer[C, CA],
) Reducer[P, PA] {
	return &presents[P, PA, C, CA]{
		parent: parent,
		state:  state,
		action: action,
		child:  child,
		token:  newToken("presents"),
	}
}

func (r *presents[P, PA, C, CA]) identity(ps nav.PresentationState[C]) (presentationIdentity, bool) {
	v, ok := ps.Get()
	if !ok {
		return presentationIdentity{}, false
	}
	tag, _ := optic.TagOf(v)
	return presentationIdentity{generation: ps.Generation(), tag: tag}, true
}

// stamp assigns a generation to an unstamped presentation and reports
// whether it did.
func (r *presents[P, PA, C, CA]) stamp(p *P, deps *dependency.Values) bool {
	ps := r.state.Get(*p)
	if !ps.IsPresented() || ps.Generation() != 0 {
		return false
	}
	ps.Stamp(dependency.Get(deps, dependency.Generation).Next())
	r.state.Set(p, ps)
	return true
}

func (r *presents[P, PA, C, CA]) Reduce(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	fresh := r.stamp(p, deps)
	before, wasPresent := r.identity(r.state.Get(*p))

	var childEffect, parentEffect effect.Effect[PA]
	pa, ok := r.action.Extract(a)
	switch {
	case ok && pa.Kind == nav.PresentationDismiss:
		if !wasPresent {
			issue.Reportf(reporter(deps),
				"Presents received a dismiss action when nothing was presented. Action: %T.", a)
		}
		parentEffect = r.parent.Reduce(p, a, deps)
		if wasPresent {
			ps := r.state.Get(*p)
			if id, present := r.identity(ps); present && id == before {
				ps.Dismiss()
				r.state.Set(p, ps)
			}
		}

	case ok && pa.Kind == nav.PresentationPresented:
		if !wasPresent {
			issue.Reportf(reporter(deps),
				"Presents received a child action when nothing was presented. Action: %T. "+
					"This usually means the parent dismissed the child before the action "+
					"was sent, or an in-flight effect outlived the child.",
				pa.Action)
		} else {
			childEffect = r.reduceChild(p, pa.Action, before, deps)
		}
		parentEffect = r.parent.Reduce(p, a, deps)

	default:
		parentEffect = r.parent.Reduce(p, a, deps)
	}

	r.stamp(p, deps)
	after, isPresent := r.identity(r.state.Get(*p))

	var cancel, listener effect.Effect[PA]
	if wasPresent && (!isPresent || after != before) {
		cancel = effect.Cancel[PA](childScope{owner: r.token, child: before})
	}
	if isPresent && (fresh || !wasPresent || after != before) {
		listener = dismissListener(childScope{owner: r.token, child: after},
			r.action.Embed(nav.DismissAction[CA]()))
	}
	return effect.Merge(childEffect, parentEffect, cancel, listener)
}

func (r *presents[P, PA, C, CA]) reduceChild(p *P, ca CA, id presentationIdentity, deps *dependency.Values) effect.Effect[PA] {
	ps := r.state.Get(*p)
	var eff effect.Effect[CA]
	ps.Modify(func(c *C) {
		eff = r.child.Reduce(c, ca, presentedDeps(deps))
	})
	r.state.Set(p, ps)

	scope := childScope{owner: r.token, child: id}
	mapped := effect.Map(eff, func(ca CA) PA {
		return r.action.Embed(nav.PresentedAction(ca))
	})
	return effect.Cancellable(effect.Namespace(mapped, scope), scope, false)
}
