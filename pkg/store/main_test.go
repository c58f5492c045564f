package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/CTAG07/markovtext/pkg/markov"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates a new SQLite database in a temporary directory and a
// Store for testing. It uses t.Cleanup to ensure resources are released.
func setupTestDB(t testing.TB) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestDBWithModel is a convenience helper that also saves a default model.
func setupTestDBWithModel(t *testing.T) (context.Context, *sql.DB, *Store, ModelInfo) {
	t.Helper()
	db, s := setupTestDB(t)
	ctx := context.Background()

	text, err := markov.NewText("One fish two fish. Red fish blue fish.", markov.WithStateSize(1))
	if err != nil {
		t.Fatalf("setup: NewText() failed: %v", err)
	}
	model, err := s.SaveText(ctx, "test_model", text)
	if err != nil {
		t.Fatalf("setup: SaveText() failed: %v", err)
	}
	return ctx, db, s, model
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}
