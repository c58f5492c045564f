package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/CTAG07/markovtext/pkg/markov"
)

const (
	// beginTokenText and endTokenText are the vocabulary rows backing the
	// reserved token IDs. Words are split on whitespace, so no word can
	// collide with these.
	beginTokenText = " " + markov.BeginTokenText
	endTokenText   = " " + markov.EndTokenText
)

// ErrEmptyModel is returned when saving a model that cannot generate anything.
var ErrEmptyModel = errors.New("store: model has no states")

// SetupSchema initializes the necessary tables and reserved vocabulary entries
// in the provided database. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaPrefixes = `
CREATE TABLE IF NOT EXISTS markov_prefixes (
	prefix_id INTEGER PRIMARY KEY,
	prefix_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    state_size INTEGER NOT NULL,
    well_formed INTEGER NOT NULL DEFAULT 1,
    reject_pattern TEXT NOT NULL DEFAULT '',
    source_text TEXT NOT NULL DEFAULT ''
);
`
		schemaChains = `
CREATE TABLE IF NOT EXISTS markov_chains (
    model_id INTEGER NOT NULL,
    prefix_id INTEGER NOT NULL,
    state_index INTEGER NOT NULL,
    position INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, prefix_id, next_token_id)
);
`
		indexChains = `CREATE INDEX IF NOT EXISTS markov_chains_order ON markov_chains (model_id, state_index, position);`
		reserved    = `INSERT OR IGNORE INTO markov_vocabulary (token_id, token_text) VALUES (?, ?), (?, ?);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, schema := range []string{schemaVocab, schemaPrefixes, schemaModels, schemaChains, indexChains} {
		if _, err = tx.Exec(schema); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if _, err = tx.Exec(reserved, markov.BeginTokenID, beginTokenText, markov.EndTokenID, endTokenText); err != nil {
		return fmt.Errorf("could not insert reserved tokens: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists markov.Text models in a SQLite database. Vocabulary and
// prefixes are shared between models; chains and settings are per model.
type Store struct {
	db                    *sql.DB
	stmtGetModelInfo      *sql.Stmt
	stmtGetModels         *sql.Stmt
	stmtGetModelSource    *sql.Stmt
	stmtModelChains       *sql.Stmt
	stmtModelStarters     *sql.Stmt
	stmtModelFreq         *sql.Stmt
	stmtGetPrefixID       *sql.Stmt
	stmtGetChains         *sql.Stmt
	stmtGetVocabLen       *sql.Stmt
	stmtGetPrefixLen      *sql.Stmt
	stmtInsertVocab       *sql.Stmt
	stmtGetOrInsertPrefix *sql.Stmt
	logger                *slog.Logger
}

// NewStore creates a Store on a database prepared with SetupSchema. It
// pre-compiles all necessary SQL statements, returning an error if any
// preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetModelInfo, `SELECT model_id, model_name, state_size, well_formed, reject_pattern, source_text != '' FROM markov_models WHERE model_name = ?;`},
		{&s.stmtGetModels, `SELECT model_id, model_name, state_size, well_formed, reject_pattern, source_text != '' FROM markov_models ORDER BY model_name;`},
		{&s.stmtGetModelSource, `SELECT source_text FROM markov_models WHERE model_id = ?;`},
		{&s.stmtModelChains, `SELECT COUNT(*) FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtModelStarters, `SELECT COUNT(*) FROM markov_chains WHERE model_id = ? AND prefix_id = ? AND next_token_id != ?;`},
		{&s.stmtModelFreq, `SELECT coalesce(SUM(frequency), 0) FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtGetPrefixID, `SELECT prefix_id FROM markov_prefixes WHERE prefix_text = ?;`},
		{&s.stmtGetChains, `SELECT prefix_id, next_token_id, frequency FROM markov_chains WHERE model_id = ? ORDER BY state_index, position;`},
		{&s.stmtGetVocabLen, `SELECT COUNT(*) FROM markov_vocabulary;`},
		{&s.stmtGetPrefixLen, `SELECT COUNT(*) FROM markov_prefixes;`},
		{&s.stmtInsertVocab, `INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`},
		{&s.stmtGetOrInsertPrefix, `INSERT INTO markov_prefixes (prefix_text) VALUES (?) ON CONFLICT(prefix_text) DO UPDATE SET prefix_text=excluded.prefix_text RETURNING prefix_id;`},
	}

	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = stmt
	}

	return s, nil
}

// Close releases all prepared SQL statements held by the Store. The database
// itself is left open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetModelInfo,
		s.stmtGetModels,
		s.stmtGetModelSource,
		s.stmtModelChains,
		s.stmtModelStarters,
		s.stmtModelFreq,
		s.stmtGetPrefixID,
		s.stmtGetChains,
		s.stmtGetVocabLen,
		s.stmtGetPrefixLen,
		s.stmtInsertVocab,
		s.stmtGetOrInsertPrefix,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}
