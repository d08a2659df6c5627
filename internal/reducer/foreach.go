package reducer

import (
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/ident"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/nav"
	"github.com/roach88/composable/internal/optic"
)

type forEach[P, PA any, ID comparable, C ident.Identifiable[ID], CA any] struct {
	parent Reducer[P, PA]
	state  optic.Lens[P, ident.Array[ID, C]]
	action optic.Prism[PA, nav.ElementAction[ID, CA]]
	child  Reducer[C, CA]
	token  *token
}

// ForEach embeds child for every element of an identified collection.
//
// An element action runs child against that element first, then parent runs
// with the same action. The element's effects emit element actions under the
// same id and are cancelled when the element leaves the collection.
// An element action for an id not in the collection is reported as an issue
// and ignored.
func ForEach[P, PA any, ID comparable, C ident.Identifiable[ID], CA any](
	parent Reducer[P, PA],
	state optic.Lens[P, ident.Array[ID, C]],
	action optic.Prism[PA, nav.ElementAction[ID, CA]],
	child Reducer[C, CA],
) Reducer[P, PA] {
	return &forEach[P, PA, ID, C, CA]{
		parent: parent,
		state:  state,
		action: action,
		child:  child,
		token:  newToken("forEach"),
	}
}

func (r *forEach[P, PA, ID, C, CA]) Reduce(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	before := r.state.Get(*p).IDs()

	childEffect := r.reduceChild(p, a, deps)
	parentEffect := r.parent.Reduce(p, a, deps)

	after := r.state.Get(*p)
	var removed []any
	for _, id := range before {
		if !after.Contains(id) {
			removed = append(removed, childScope{owner: r.token, child: id})
		}
	}
	return effect.Merge(childEffect, parentEffect, effect.Cancel[PA](removed...))
}

func (r *forEach[P, PA, ID, C, CA]) reduceChild(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	ea, ok := r.action.Extract(a)
	if !ok {
		return effect.None[PA]()
	}
	elems := r.state.Get(*p)
	elem, ok := elems.Get(ea.ID)
	if !ok {
		issue.Reportf(reporter(deps),
			"forEach received an action for a missing element. Action: %T, id: %v. "+
				"This usually means a sibling reducer removed the element before this "+
				"one ran, or an in-flight effect emitted an action after the element "+
				"was removed.",
			ea.Action, ea.ID)
		return effect.None[PA]()
	}

	eff := r.child.Reduce(&elem, ea.Action, deps)
	elems.UpdateOrAppend(elem)
	r.state.Set(p, elems)

	id := ea.ID
	scope := childScope{owner: r.token, child: id}
	mapped := effect.Map(eff, func(ca CA) PA {
		return r.action.Embed(nav.ElementAction[ID, CA]{ID: id, Action: ca})
	})
	return effect.Cancellable(effect.Namespace(mapped, scope), scope, false)
}
