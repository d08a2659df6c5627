// Package journal records processed store actions into SQLite and replays
// them to verify that a reducer is deterministic.
//
// A Recorder is a store.Observer. For every processed action it appends one
// row holding the action's seq, its parent seq, its origin, the action
// encoded through a Codec, and the fingerprint of the state right after the
// reduction (see package canon).
//
// Replay feeds the recorded actions, in seq order, through a fresh store
// whose reducer runs with every effect discarded, and compares each state
// fingerprint against the recorded one. Effect-emitted actions are recorded
// too, so replay reproduces the run without re-running its side effects.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - a single open connection; SQLite allows one writer at a time
//
// All queries order by seq (or session ordinal), never by timestamps.
package journal
