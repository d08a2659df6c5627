package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/composable/internal/canon"
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/reducer"
	"github.com/roach88/composable/internal/store"
)

// ReplayError reports why a replay failed.
type ReplayError struct {
	Code    ReplayErrorCode
	Message string
	Session string
	// Seq is the recorded action at which replay stopped, if any.
	Seq      int64
	Expected string
	Actual   string
	Err      error
}

// ReplayErrorCode categorizes replay failures.
type ReplayErrorCode string

const (
	// ErrCodeEmptySession indicates the session has no recorded actions.
	ErrCodeEmptySession ReplayErrorCode = "EMPTY_SESSION"

	// ErrCodeDecode indicates a recorded action could not be decoded.
	ErrCodeDecode ReplayErrorCode = "DECODE_FAILED"

	// ErrCodeDivergence indicates a replayed state differs from the recording.
	ErrCodeDivergence ReplayErrorCode = "DIVERGENCE"

	// ErrCodeSequenceGap indicates recorded seqs are not contiguous.
	ErrCodeSequenceGap ReplayErrorCode = "SEQUENCE_GAP"
)

// Error implements the error interface.
func (e *ReplayError) Error() string {
	msg := fmt.Sprintf("%s: %s (session=%s", e.Code, e.Message, e.Session)
	if e.Seq != 0 {
		msg += fmt.Sprintf(", seq=%d", e.Seq)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ReplayError) Unwrap() error { return e.Err }

// IsDivergence reports whether err is a state divergence.
func IsDivergence(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDivergence
	}
	return false
}

// IsDecodeError reports whether err is a decode failure.
func IsDecodeError(err error) bool {
	var re *ReplayError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDecode
	}
	return false
}

// ReplayResult summarizes a successful replay.
type ReplayResult struct {
	Session    string `json:"session"`
	Actions    int    `json:"actions"`
	FromSend   int    `json:"from_send"`
	FromEffect int    `json:"from_effect"`
	FinalHash  string `json:"final_hash"`
}

// Replay re-runs a recorded session against initial and r. Effects are
// discarded; the recorded effect actions are sent in their place. Every
// resulting state is compared against its recorded fingerprint.
func Replay[S, A any](ctx context.Context, j *Journal, session string, initial S, r reducer.Reducer[S, A], codec Codec[A], opts ...store.Option) (*ReplayResult, error) {
	entries, err := j.Entries(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if len(entries) == 0 {
		return nil, &ReplayError{Code: ErrCodeEmptySession, Message: "no recorded actions", Session: session}
	}

	var (
		last    string
		hashErr error
	)
	observe := store.ObserverFunc(func(ev store.Event) {
		last, hashErr = canon.Fingerprint(ev.State)
	})
	opts = append(append([]store.Option(nil), opts...), store.WithObserver(observe))
	s := store.New(initial, withoutEffects(r), opts...)
	defer s.Close()

	result := &ReplayResult{Session: session}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
		if want := int64(i + 1); e.Seq != want {
			return nil, &ReplayError{
				Code:    ErrCodeSequenceGap,
				Message: fmt.Sprintf("expected seq %d", want),
				Session: session,
				Seq:     e.Seq,
			}
		}
		action, err := codec.Decode(e.Kind, e.Payload)
		if err != nil {
			return nil, &ReplayError{
				Code:    ErrCodeDecode,
				Message: fmt.Sprintf("cannot decode %q", e.Kind),
				Session: session,
				Seq:     e.Seq,
				Err:     err,
			}
		}

		s.Send(action)
		if hashErr != nil {
			return nil, fmt.Errorf("replay seq %d: %w", e.Seq, hashErr)
		}
		if last != e.StateHash {
			return nil, &ReplayError{
				Code:     ErrCodeDivergence,
				Message:  fmt.Sprintf("state after %q differs from recording", e.Kind),
				Session:  session,
				Seq:      e.Seq,
				Expected: e.StateHash,
				Actual:   last,
			}
		}

		result.Actions++
		if e.Origin == store.OriginEffect.String() {
			result.FromEffect++
		} else {
			result.FromSend++
		}
	}
	result.FinalHash = last
	return result, nil
}

func withoutEffects[S, A any](r reducer.Reducer[S, A]) reducer.Reducer[S, A] {
	return reducer.Func[S, A](func(state *S, action A, deps *dependency.Values) effect.Effect[A] {
		r.Reduce(state, action, deps)
		return effect.None[A]()
	})
}
