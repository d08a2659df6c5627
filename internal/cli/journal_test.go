package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/journal"
	"github.com/roach88/composable/internal/testutil"
)

// recordTestdata runs two scenarios into a fresh journal and returns its
// path.
func recordTestdata(t *testing.T) string {
	t.Helper()
	db := testutil.JournalPath(t)
	out, _, code := execute(t, "scenario", "run",
		filepath.Join(scenarioDir, "counter_basic.yaml"),
		filepath.Join(scenarioDir, "stack_pop_from.yaml"),
		"--db", db)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "session ")
	return db
}

func TestJournalSessions(t *testing.T) {
	db := recordTestdata(t)

	out, _, code := execute(t, "journal", "sessions", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code, out)

	var sessions []SessionInfo
	decodeData(t, out, &sessions)
	require.Len(t, sessions, 2)
	labels := []string{sessions[0].Label, sessions[1].Label}
	assert.ElementsMatch(t, []string{"counter/counter_basic", "app/stack_pop_from"}, labels)
	for _, s := range sessions {
		assert.Equal(t, 4, s.Actions)
	}
}

func TestJournalTrace(t *testing.T) {
	db := recordTestdata(t)
	j, err := journal.Open(db)
	require.NoError(t, err)
	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	var counter journal.Session
	for _, s := range sessions {
		if s.Label == "counter/counter_basic" {
			counter = s
		}
	}
	require.NotEmpty(t, counter.ID)

	out, _, code := execute(t, "journal", "trace", "--db", db, "--session", counter.ID)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "delayed_increment")
	assert.Contains(t, out, "<- 3")

	out, _, code = execute(t, "journal", "trace", "--db", db, "--session", counter.ID, "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var trace TraceOutput
	decodeData(t, out, &trace)
	require.Len(t, trace.Entries, 4)
	assert.Equal(t, "effect", trace.Entries[3].Origin)
	assert.JSONEq(t, `{"delay_ms": 1000}`, string(trace.Entries[2].Payload))
	assert.Equal(t, 1, trace.Kinds["increment"])

	_, stderr, code := execute(t, "journal", "trace", "--db", db, "--session", "missing")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "session not found")
}

func TestJournalReplay(t *testing.T) {
	db := recordTestdata(t)

	out, _, code := execute(t, "journal", "replay", "--db", db)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "Replay Summary: 2 session(s), 0 failed")

	out, _, code = execute(t, "journal", "replay", "--db", db, "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var replay ReplayOutput
	decodeData(t, out, &replay)
	require.Len(t, replay.Sessions, 2)
	for _, s := range replay.Sessions {
		assert.True(t, s.OK, s.Error)
		assert.Equal(t, 4, s.Actions)
	}
}

func TestJournalReplayReportsDivergence(t *testing.T) {
	db := testutil.JournalPath(t)
	ctx := context.Background()
	j, err := journal.Open(db)
	require.NoError(t, err)

	tampered, err := j.NewSession(ctx, "counter")
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, journal.Entry{
		Session:   tampered.ID,
		Seq:       1,
		Origin:    "send",
		Kind:      "increment",
		Payload:   json.RawMessage(`{}`),
		StateHash: "not-the-hash",
	}))
	orphan, err := j.NewSession(ctx, "spreadsheet/x")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, _, code := execute(t, "journal", "replay", "--db", db, "--format", "json")
	assert.Equal(t, ExitFailure, code)

	var replay ReplayOutput
	resp := decodeData(t, out, &replay)
	assert.Equal(t, ErrCodeDivergence, resp.Error.Code)
	assert.Equal(t, 2, replay.Failed)

	byID := map[string]SessionReplay{}
	for _, s := range replay.Sessions {
		byID[s.Session] = s
	}
	assert.Equal(t, string(journal.ErrCodeDivergence), byID[tampered.ID].Code)
	assert.Equal(t, int64(1), byID[tampered.ID].Seq)
	assert.Contains(t, byID[orphan.ID].Error, "names no feature")
}

func TestJournalRequiresDB(t *testing.T) {
	_, stderr, code := execute(t, "journal", "sessions")
	assert.NotEqual(t, ExitSuccess, code)
	assert.Contains(t, stderr, `"db" not set`)
}
