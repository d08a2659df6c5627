package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Session groups the actions recorded from one store.
type Session struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Ordinal is the session's creation order within the journal.
	Ordinal int64 `json:"ordinal"`
}

// Entry is one recorded action.
type Entry struct {
	Session   string          `json:"session"`
	Seq       int64           `json:"seq"`
	Parent    int64           `json:"parent,omitempty"`
	Origin    string          `json:"origin"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
}

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// NewSession starts a session. Label usually names the feature recorded,
// so that replay can pick the matching reducer.
func (j *Journal) NewSession(ctx context.Context, label string) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	s := Session{ID: id.String(), Label: label}
	err = j.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, label, ordinal)
		VALUES (?, ?, (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM sessions))
		RETURNING ordinal
	`, s.ID, s.Label).Scan(&s.Ordinal)
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	return s, nil
}

// Sessions lists sessions in creation order.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, label, ordinal FROM sessions ORDER BY ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Label, &s.Ordinal); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session looks up one session by id.
func (j *Journal) Session(ctx context.Context, id string) (Session, error) {
	var s Session
	err := j.db.QueryRowContext(ctx, `
		SELECT id, label, ordinal FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Label, &s.Ordinal)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// Append writes an entry. Writing the same (session, seq) twice is a no-op.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	payload := string(e.Payload)
	if payload == "" {
		payload = "null"
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO actions (session_id, seq, parent, origin, kind, payload, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, e.Session, e.Seq, e.Parent, e.Origin, e.Kind, payload, e.StateHash)
	if err != nil {
		return fmt.Errorf("append action %d: %w", e.Seq, err)
	}
	return nil
}

// Entries returns a session's actions ordered by seq. It returns an empty
// slice, not nil, for a session with no actions.
func (j *Journal) Entries(ctx context.Context, session string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, seq, parent, origin, kind, payload, state_hash
		FROM actions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			payload string
		)
		if err := rows.Scan(&e.Session, &e.Seq, &e.Parent, &e.Origin, &e.Kind, &payload, &e.StateHash); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return entries, nil
}

// CountByKind returns how many actions of each kind a session recorded.
func (j *Journal) CountByKind(ctx context.Context, session string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM actions
		WHERE session_id = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}
