package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/composable/internal/canon"
	"github.com/roach88/composable/internal/store"
)

// Codec converts actions to and from a kind name plus a JSON payload.
type Codec[A any] interface {
	Encode(action A) (kind string, payload json.RawMessage, err error)
	Decode(kind string, payload json.RawMessage) (A, error)
}

// Recorder appends every processed action of a store to a session.
// Install it with store.WithObserver.
type Recorder[A any] struct {
	journal *Journal
	session string
	codec   Codec[A]

	mu      sync.Mutex
	err     error
	written int
}

var _ store.Observer = (*Recorder[int])(nil)

// NewRecorder returns a recorder writing into session.
func NewRecorder[A any](j *Journal, session string, codec Codec[A]) *Recorder[A] {
	return &Recorder[A]{journal: j, session: session, codec: codec}
}

// ActionProcessed implements store.Observer. The first failure stops
// recording; it is returned by Err.
func (r *Recorder[A]) ActionProcessed(ev store.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.record(ev); err != nil {
		r.err = err
		r.journal.logger.Error("journal recording stopped",
			"session", r.session,
			"seq", ev.Seq,
			"error", err,
		)
		return
	}
	r.written++
}

func (r *Recorder[A]) record(ev store.Event) error {
	action, ok := ev.Action.(A)
	if !ok {
		return fmt.Errorf("record seq %d: unexpected action type %T", ev.Seq, ev.Action)
	}
	kind, payload, err := r.codec.Encode(action)
	if err != nil {
		return fmt.Errorf("record seq %d: encode: %w", ev.Seq, err)
	}
	hash, err := canon.Fingerprint(ev.State)
	if err != nil {
		return fmt.Errorf("record seq %d: fingerprint: %w", ev.Seq, err)
	}
	return r.journal.Append(context.Background(), Entry{
		Session:   r.session,
		Seq:       ev.Seq,
		Parent:    ev.Parent,
		Origin:    ev.Origin.String(),
		Kind:      kind,
		Payload:   payload,
		StateHash: hash,
	})
}

// Err returns the error that stopped recording, if any.
func (r *Recorder[A]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Written returns how many entries were appended.
func (r *Recorder[A]) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}
