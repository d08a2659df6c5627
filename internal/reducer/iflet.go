package reducer

import (
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/optic"
)

type ifLet[P, PA, C, CA any] struct {
	parent Reducer[P, PA]
	state  optic.Lens[P, *C]
	action optic.Prism[PA, CA]
	child  Reducer[C, CA]
	token  *token
}

// IfLet embeds child for optional state held behind a pointer.
//
// The child's identity is its presence plus its optic.Tagged tag, if any.
// Setting the pointer to nil, or to a child with a different tag, cancels
// the effects of the previous child. The child runs against a copy that is
// stored behind a new pointer, so earlier state snapshots never change.
// A child action while the state is nil is reported as an issue and
// ignored.
func IfLet[P, PA, C, CA any](
	parent Reducer[P, PA],
	state optic.Lens[P, *C],
	action optic.Prism[PA, CA],
	child Reducer[C, CA],
) Reducer[P, PA] {
	return &ifLet[P, PA, C, CA]{
		parent: parent,
		state:  state,
		action: action,
		child:  child,
		token:  newToken("ifLet"),
	}
}

func (r *ifLet[P, PA, C, CA]) identity(p P) (childScope, bool) {
	c := r.state.Get(p)
	if c == nil {
		return childScope{}, false
	}
	tag, _ := optic.TagOf(*c)
	return childScope{owner: r.token, child: tag}, true
}

func (r *ifLet[P, PA, C, CA]) Reduce(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	before, wasPresent := r.identity(*p)

	var childEffect effect.Effect[PA]
	if ca, ok := r.action.Extract(a); ok {
		if !wasPresent {
			issue.Reportf(reporter(deps),
				"ifLet received a child action when child state was nil. Action: %T. "+
					"This usually means the parent cleared the state before the action "+
					"was sent, or an in-flight effect outlived the child.",
				ca)
		} else {
			c := *r.state.Get(*p)
			eff := r.child.Reduce(&c, ca, deps)
			r.state.Set(p, &c)
			childEffect = effect.Cancellable(
				effect.Namespace(effect.Map(eff, r.action.Embed), before), before, false)
		}
	}

	parentEffect := r.parent.Reduce(p, a, deps)

	var cancel effect.Effect[PA]
	if after, present := r.identity(*p); wasPresent && (!present || after != before) {
		cancel = effect.Cancel[PA](before)
	}
	return effect.Merge(childEffect, parentEffect, cancel)
}

type ifCaseLet[P, PA, C, CA any] struct {
	parent Reducer[P, PA]
	state  optic.Prism[P, C]
	action optic.Prism[PA, CA]
	child  Reducer[C, CA]
	token  *token
}

// IfCaseLet embeds child for one case of an enum-like state.
//
// The case is present while state extracts through the prism. Switching to
// another case cancels the child's effects. When the case implements
// optic.Tagged, a change of tag within the case also counts as a
// replacement. A child action while another case is active is reported as
// an issue and ignored.
func IfCaseLet[P, PA, C, CA any](
	parent Reducer[P, PA],
	state optic.Prism[P, C],
	action optic.Prism[PA, CA],
	child Reducer[C, CA],
) Reducer[P, PA] {
	return &ifCaseLet[P, PA, C, CA]{
		parent: parent,
		state:  state,
		action: action,
		child:  child,
		token:  newToken("ifCaseLet"),
	}
}

func (r *ifCaseLet[P, PA, C, CA]) identity(p P) (childScope, bool) {
	c, ok := r.state.Extract(p)
	if !ok {
		return childScope{}, false
	}
	tag, _ := optic.TagOf(c)
	return childScope{owner: r.token, child: tag}, true
}

func (r *ifCaseLet[P, PA, C, CA]) Reduce(p *P, a PA, deps *dependency.Values) effect.Effect[PA] {
	before, wasPresent := r.identity(*p)

	var childEffect effect.Effect[PA]
	if ca, ok := r.action.Extract(a); ok {
		c, present := r.state.Extract(*p)
		if !present {
			issue.Reportf(reporter(deps),
				"ifCaseLet received a child action when state held a different case. Action: %T, state: %T. "+
					"This usually means the parent switched cases before the action was "+
					"sent, or an in-flight effect outlived the case.",
				ca, *p)
		} else {
			eff := r.child.Reduce(&c, ca, deps)
			*p = r.state.Embed(c)
			childEffect = effect.Cancellable(
				effect.Namespace(effect.Map(eff, r.action.Embed), before), before, false)
		}
	}

	parentEffect := r.parent.Reduce(p, a, deps)

	var cancel effect.Effect[PA]
	if after, present := r.identity(*p); wasPresent && (!present || after != before) {
		cancel = effect.Cancel[PA](before)
	}
	return effect.Merge(childEffect, parentEffect, cancel)
}
