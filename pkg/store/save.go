package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/CTAG07/markovtext/pkg/markov"
)

// chainLink is a struct used for batching chain inserts.
type chainLink struct {
	prefixID    int
	stateIndex  int
	position    int
	nextTokenID int
	frequency   int
}

// SaveText stores a model under the given name, replacing any model already
// stored with that name. Per-state transition order is kept, so the loaded
// model samples exactly like the saved one. The entire operation is
// performed within a single database transaction.
func (s *Store) SaveText(ctx context.Context, name string, text *markov.Text) (ModelInfo, error) {
	// chainBatchSize determines how many chain links are buffered in memory before being written to the database in a single batch.
	const chainBatchSize = 1000

	if text.IsEmpty() {
		return ModelInfo{}, ErrEmptyModel
	}
	exported := text.Exported()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, err
	}
	// All transaction-specific statements will also be closed with this or the .Commit()
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var existingID int
	err = tx.QueryRowContext(ctx, "SELECT model_id FROM markov_models WHERE model_name = ?", name).Scan(&existingID)
	if err == nil {
		if err = deleteModel(ctx, tx, existingID); err != nil {
			return ModelInfo{}, err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", name, err)
	}

	model := ModelInfo{
		Name:           name,
		StateSize:      exported.StateSize,
		WellFormed:     exported.WellFormed,
		RejectPattern:  exported.RejectPattern,
		SourceRetained: exported.SourceText != "",
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO markov_models (model_name, state_size, well_formed, reject_pattern, source_text) VALUES (?, ?, ?, ?, ?) RETURNING model_id;`,
		model.Name, model.StateSize, model.WellFormed, model.RejectPattern, exported.SourceText,
	).Scan(&model.Id)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to insert model '%s': %w", name, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtGetOrInsertPrefix := tx.StmtContext(ctx, s.stmtGetOrInsertPrefix)
	stmtInsertChainBatch, err := tx.PrepareContext(ctx, `INSERT INTO markov_chains (model_id, prefix_id, state_index, position, next_token_id, frequency) VALUES (?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to prepare batch chain insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertChainBatch)

	// Model token IDs map onto database token IDs; the reserved IDs are shared.
	tokenIDs := make([]int, len(exported.Chain.Vocabulary))
	tokenIDs[markov.BeginTokenID] = markov.BeginTokenID
	tokenIDs[markov.EndTokenID] = markov.EndTokenID
	for id := markov.EndTokenID + 1; id < len(tokenIDs); id++ {
		word := exported.Chain.Vocabulary[id]
		if err = stmtInsertVocab.QueryRowContext(ctx, word).Scan(&tokenIDs[id]); err != nil {
			return ModelInfo{}, fmt.Errorf("sql insert vocabulary error for token '%s': %w", word, err)
		}
	}

	commitChainBatch := func(batch *[]chainLink) error {
		if len(*batch) == 0 {
			return nil
		}
		for _, link := range *batch {
			if _, err := stmtInsertChainBatch.ExecContext(ctx, model.Id, link.prefixID, link.stateIndex, link.position, link.nextTokenID, link.frequency); err != nil {
				return fmt.Errorf("failed during batch insert of chain link (%d -> %d): %w", link.prefixID, link.nextTokenID, err)
			}
		}
		*batch = (*batch)[:0]
		return nil
	}

	chainBatch := make([]chainLink, 0, chainBatchSize)
	var keyBuf []byte
	var linkCount int
	for i, state := range exported.Chain.States {
		keyBuf = appendPrefixKey(keyBuf[:0], state.Prefix, tokenIDs)
		var prefixID int
		if err = stmtGetOrInsertPrefix.QueryRowContext(ctx, string(keyBuf)).Scan(&prefixID); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to get or insert prefix '%s': %w", keyBuf, err)
		}

		for j, next := range state.Next {
			chainBatch = append(chainBatch, chainLink{
				prefixID:    prefixID,
				stateIndex:  i,
				position:    j,
				nextTokenID: tokenIDs[next],
				frequency:   state.Weights[j],
			})
		}
		linkCount += len(state.Next)

		if len(chainBatch) >= chainBatchSize {
			if err = commitChainBatch(&chainBatch); err != nil {
				return ModelInfo{}, err
			}
		}
	}
	if err = commitChainBatch(&chainBatch); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("state_size", model.StateSize),
		slog.Int("states_saved", len(exported.Chain.States)),
		slog.Int("chains_saved", linkCount),
		slog.Bool("replaced", existingID != 0),
	)

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, fmt.Errorf("could not commit transaction: %w", err)
	}
	return model, nil
}

// appendPrefixKey encodes a window of model token IDs as the space-separated
// database token IDs.
func appendPrefixKey(keyBuf []byte, window []int, tokenIDs []int) []byte {
	for j, tokenID := range window {
		if j > 0 {
			keyBuf = append(keyBuf, ' ')
		}
		keyBuf = strconv.AppendInt(keyBuf, int64(tokenIDs[tokenID]), 10)
	}
	return keyBuf
}
