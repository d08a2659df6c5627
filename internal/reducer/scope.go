package reducer

import (
	"fmt"
	"sync/atomic"
)

var tokenSeq atomic.Uint64

// token identifies one combinator instance. Tokens compare by pointer.
type token struct {
	n    uint64
	kind string
}

func newToken(kind string) *token {
	return &token{n: tokenSeq.Add(1), kind: kind}
}

func (t *token) String() string {
	return fmt.Sprintf("%s#%d", t.kind, t.n)
}

// childScope is the cancellation scope of one child of one combinator.
type childScope struct {
	owner *token
	child any
}

func (s childScope) String() string {
	return fmt.Sprintf("%s/%v", s.owner, s.child)
}
