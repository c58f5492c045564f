package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CTAG07/markovtext/pkg/markov"
)

// PruneResult reports what PruneOrphans removed.
type PruneResult struct {
	TokensRemoved   int
	PrefixesRemoved int
}

// PruneOrphans performs a database-wide cleanup, removing prefixes that no
// chain uses and vocabulary tokens that no chain or remaining prefix
// references. Vocabulary and prefixes are shared between models, so they
// outlive RemoveModel and replaced models until this is run. The reserved
// tokens are never pruned.
func (s *Store) PruneOrphans(ctx context.Context) (PruneResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PruneResult{}, fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	orphanPrefixes, err := queryIDs(ctx, tx,
		`SELECT prefix_id FROM markov_prefixes WHERE prefix_id NOT IN (SELECT DISTINCT prefix_id FROM markov_chains)`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("failed to query for orphan prefixes: %w", err)
	}
	if err := batchDelete(ctx, tx, "markov_prefixes", "prefix_id", intSliceToInterface(orphanPrefixes)); err != nil {
		return PruneResult{}, fmt.Errorf("failed to prune orphan prefixes: %w", err)
	}

	// SQLite cannot split prefix_text, so prefix tokens are collected in Go.
	used := make(map[int]struct{})
	pRows, err := tx.QueryContext(ctx, `SELECT prefix_text FROM markov_prefixes`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("failed to query prefixes: %w", err)
	}
	for pRows.Next() {
		var prefixText string
		if err := pRows.Scan(&prefixText); err != nil {
			_ = pRows.Close()
			return PruneResult{}, fmt.Errorf("failed to scan prefix row: %w", err)
		}
		window, err := parsePrefix(prefixText)
		if err != nil {
			_ = pRows.Close()
			return PruneResult{}, fmt.Errorf("corrupt prefix '%s': %w", prefixText, err)
		}
		for _, id := range window {
			used[id] = struct{}{}
		}
	}
	_ = pRows.Close()
	if err := pRows.Err(); err != nil {
		return PruneResult{}, fmt.Errorf("error after iterating prefix rows: %w", err)
	}

	candidates, err := queryIDs(ctx, tx,
		`SELECT token_id FROM markov_vocabulary WHERE token_id NOT IN (?, ?) AND token_id NOT IN (SELECT DISTINCT next_token_id FROM markov_chains)`,
		markov.BeginTokenID, markov.EndTokenID)
	if err != nil {
		return PruneResult{}, fmt.Errorf("failed to query for orphan tokens: %w", err)
	}
	var orphanTokens []int
	for _, id := range candidates {
		if _, ok := used[id]; !ok {
			orphanTokens = append(orphanTokens, id)
		}
	}
	if err := batchDelete(ctx, tx, "markov_vocabulary", "token_id", intSliceToInterface(orphanTokens)); err != nil {
		return PruneResult{}, fmt.Errorf("failed to prune orphan tokens: %w", err)
	}

	result := PruneResult{TokensRemoved: len(orphanTokens), PrefixesRemoved: len(orphanPrefixes)}
	s.logger.InfoContext(ctx, "Orphans pruned",
		slog.Int("tokens_removed", result.TokensRemoved),
		slog.Int("prefixes_removed", result.PrefixesRemoved),
	)

	if err := tx.Commit(); err != nil {
		return PruneResult{}, err
	}
	return result, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// batchDelete deletes rows by id. It handles empty lists and splits large
// lists into smaller batches to avoid SQL limits.
func batchDelete(ctx context.Context, tx *sql.Tx, table, column string, ids []interface{}) error {
	if len(ids) == 0 {
		return nil
	}

	for i := 0; i < len(ids); i += batchSize {
		batch := ids[i:min(i+batchSize, len(ids))]

		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s)", table, column, strings.Repeat(",?", len(batch)-1))

		if _, err := tx.ExecContext(ctx, query, batch...); err != nil {
			return err
		}
	}
	return nil
}
