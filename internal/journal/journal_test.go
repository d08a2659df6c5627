package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/canon"
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/reducer"
	"github.com/roach88/composable/internal/store"
)

// tally is a small feature: "add" changes the total, "echo" sends an add
// back from an effect.
type tally struct {
	Total int `json:"total"`
}

type tallyAction struct {
	Op string `json:"op"`
	N  int    `json:"n"`
}

type tallyCodec struct{}

func (tallyCodec) Encode(a tallyAction) (string, json.RawMessage, error) {
	payload, err := json.Marshal(map[string]int{"n": a.N})
	return a.Op, payload, err
}

func (tallyCodec) Decode(kind string, payload json.RawMessage) (tallyAction, error) {
	switch kind {
	case "add", "echo":
	default:
		return tallyAction{}, fmt.Errorf("unknown kind %q", kind)
	}
	var args struct {
		N int `json:"n"`
	}
	if err := json.Unmarshal(payload, &args); err != nil {
		return tallyAction{}, err
	}
	return tallyAction{Op: kind, N: args.N}, nil
}

func tallyReducer() reducer.Reducer[tally, tallyAction] {
	return reducer.Func[tally, tallyAction](func(s *tally, a tallyAction, _ *dependency.Values) effect.Effect[tallyAction] {
		switch a.Op {
		case "add":
			s.Total += a.N
		case "echo":
			n := a.N
			return effect.Run(func(ctx context.Context, send effect.Sender[tallyAction]) error {
				send(tallyAction{Op: "add", N: n})
				return nil
			})
		}
		return effect.None[tallyAction]()
	})
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// record runs actions through a recorded store and waits for all effects.
func record(t *testing.T, j *Journal, actions ...tallyAction) (Session, *Recorder[tallyAction]) {
	t.Helper()
	ctx := context.Background()
	sess, err := j.NewSession(ctx, "tally")
	require.NoError(t, err)

	rec := NewRecorder[tallyAction](j, sess.ID, tallyCodec{})
	s := store.New(tally{}, tallyReducer(), store.WithObserver(rec))
	for _, a := range actions {
		require.NoError(t, s.Send(a).Finish(time.Second))
	}
	require.NoError(t, rec.Err())
	return sess, rec
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, j.Close())
	}
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_AppliesPragmas(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	tests := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range tests {
		got, err := j.pragma(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestSessionsInCreationOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	a, err := j.NewSession(ctx, "counter")
	require.NoError(t, err)
	b, err := j.NewSession(ctx, "todos")
	require.NoError(t, err)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, a.ID, sessions[0].ID)
	assert.Equal(t, int64(1), sessions[0].Ordinal)
	assert.Equal(t, "todos", sessions[1].Label)
	assert.Equal(t, int64(2), b.Ordinal)

	got, err := j.Session(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = j.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendIdempotentAndOrdered(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	sess, err := j.NewSession(ctx, "x")
	require.NoError(t, err)

	for _, seq := range []int64{2, 1, 2} {
		require.NoError(t, j.Append(ctx, Entry{
			Session:   sess.ID,
			Seq:       seq,
			Origin:    "send",
			Kind:      "add",
			Payload:   json.RawMessage(fmt.Sprintf(`{"n":%d}`, seq)),
			StateHash: "h",
		}))
	}

	entries, err := j.Entries(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.JSONEq(t, `{"n":2}`, string(entries[1].Payload))
}

func TestAppendRejectsUnknownSession(t *testing.T) {
	j := openTestJournal(t)
	err := j.Append(context.Background(), Entry{Session: "nope", Seq: 1, Origin: "send", Kind: "add", StateHash: "h"})
	assert.Error(t, err)
}

func TestEntriesEmpty(t *testing.T) {
	j := openTestJournal(t)
	entries, err := j.Entries(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRecorderWritesEveryAction(t *testing.T) {
	j := openTestJournal(t)
	sess, rec := record(t, j,
		tallyAction{Op: "add", N: 2},
		tallyAction{Op: "echo", N: 5},
	)
	assert.Equal(t, 3, rec.Written())

	entries, err := j.Entries(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "send", entries[1].Origin)
	assert.Equal(t, "echo", entries[1].Kind)
	assert.Equal(t, "effect", entries[2].Origin)
	assert.Equal(t, int64(2), entries[2].Parent)
	assert.Equal(t, canon.MustFingerprint(tally{Total: 7}), entries[2].StateHash)

	counts, err := j.CountByKind(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"add": 2, "echo": 1}, counts)
}

func TestReplayReproducesRecording(t *testing.T) {
	j := openTestJournal(t)
	sess, _ := record(t, j,
		tallyAction{Op: "add", N: 1},
		tallyAction{Op: "echo", N: 3},
		tallyAction{Op: "add", N: -2},
	)

	res, err := Replay(context.Background(), j, sess.ID, tally{}, tallyReducer(), tallyCodec{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Actions)
	assert.Equal(t, 3, res.FromSend)
	assert.Equal(t, 1, res.FromEffect)
	assert.Equal(t, canon.MustFingerprint(tally{Total: 2}), res.FinalHash)
}

func TestReplayDetectsDivergence(t *testing.T) {
	j := openTestJournal(t)
	sess, _ := record(t, j, tallyAction{Op: "add", N: 1}, tallyAction{Op: "add", N: 1})

	doubled := reducer.Func[tally, tallyAction](func(s *tally, a tallyAction, _ *dependency.Values) effect.Effect[tallyAction] {
		s.Total += 2 * a.N
		return effect.None[tallyAction]()
	})

	_, err := Replay(context.Background(), j, sess.ID, tally{}, doubled, tallyCodec{})
	require.Error(t, err)
	assert.True(t, IsDivergence(err))

	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int64(1), re.Seq)
	assert.NotEqual(t, re.Expected, re.Actual)
}

func TestReplayDecodeFailure(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	sess, err := j.NewSession(ctx, "tally")
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, Entry{Session: sess.ID, Seq: 1, Origin: "send", Kind: "multiply", Payload: json.RawMessage(`{}`), StateHash: "h"}))

	_, err = Replay(ctx, j, sess.ID, tally{}, tallyReducer(), tallyCodec{})
	assert.True(t, IsDecodeError(err))
	assert.False(t, IsDivergence(err))
}

func TestReplayEmptySessionAndGap(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	sess, err := j.NewSession(ctx, "tally")
	require.NoError(t, err)

	_, err = Replay(ctx, j, sess.ID, tally{}, tallyReducer(), tallyCodec{})
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeEmptySession, re.Code)

	require.NoError(t, j.Append(ctx, Entry{Session: sess.ID, Seq: 2, Origin: "send", Kind: "add", Payload: json.RawMessage(`{"n":1}`), StateHash: "h"}))
	_, err = Replay(ctx, j, sess.ID, tally{}, tallyReducer(), tallyCodec{})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeSequenceGap, re.Code)
	assert.Contains(t, err.Error(), "SEQUENCE_GAP")
}
