package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/journal"
)

// JournalPath returns a fresh database path under t's temp dir.
func JournalPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "journal.db")
}

// OpenJournal opens a journal at a fresh path and closes it when t finishes.
func OpenJournal(t *testing.T) (*journal.Journal, string) {
	t.Helper()
	path := JournalPath(t)
	j, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}
