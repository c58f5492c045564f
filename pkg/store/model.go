package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ModelInfo holds the metadata of a stored model.
type ModelInfo struct {
	Id             int
	Name           string
	StateSize      int
	WellFormed     bool
	RejectPattern  string
	SourceRetained bool // Whether the source text was kept for the overlap test
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModelInfo(row rowScanner) (ModelInfo, error) {
	var model ModelInfo
	err := row.Scan(&model.Id, &model.Name, &model.StateSize, &model.WellFormed, &model.RejectPattern, &model.SourceRetained)
	return model, err
}

// GetModelInfos retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		model, err := scanModelInfo(rows)
		if err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model specified by name.
// sql.ErrNoRows is returned if no such model exists.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	return scanModelInfo(s.stmtGetModelInfo.QueryRowContext(ctx, modelName))
}

// RemoveModel deletes a model and all of its chain data from the database.
// Vocabulary and prefixes are shared and left in place; see PruneOrphans.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = deleteModel(ctx, tx, model.Id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

func deleteModel(ctx context.Context, tx *sql.Tx, modelID int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove chains for model %d: %w", modelID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}
	return nil
}
