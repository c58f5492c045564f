package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/CTAG07/markovtext/pkg/markov"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models     []ModelInfo        // A list of models in the database
	Stats      map[int]ModelStats // A mapping of model ids to their stats
	VocabSize  int                // The number of unique tokens in all models' vocabularies
	PrefixSize int                // The number of unique prefixes in all models' chains
}

// ModelStats holds aggregated statistics for a single stored model.
type ModelStats struct {
	TotalChains    int // The number of unique prefix->next_token links.
	TotalFrequency int // The sum of frequencies of all links; the total number of trained transitions.
	StartingTokens int // The number of unique tokens that can start a sentence.
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	var vocabLen int
	err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&vocabLen)
	if err != nil {
		return nil, err
	}

	var prefixLen int
	err = s.stmtGetPrefixLen.QueryRowContext(ctx).Scan(&prefixLen)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats)
	for _, v := range modelInfos {
		models = append(models, v)
		var totalChains, totalFrequency, startingTokens int
		err = s.stmtModelChains.QueryRowContext(ctx, v.Id).Scan(&totalChains)
		if err != nil {
			return nil, err
		}
		err = s.stmtModelFreq.QueryRowContext(ctx, v.Id).Scan(&totalFrequency)
		if err != nil {
			return nil, err
		}
		start := make([]string, v.StateSize)
		beginStr := strconv.Itoa(markov.BeginTokenID)
		for i := range start {
			start[i] = beginStr
		}
		var startID int
		err = s.stmtGetPrefixID.QueryRowContext(ctx, strings.Join(start, " ")).Scan(&startID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		} else {
			err = s.stmtModelStarters.QueryRowContext(ctx, v.Id, startID, markov.EndTokenID).Scan(&startingTokens)
			if err != nil {
				return nil, err
			}
		}
		modelStats[v.Id] = ModelStats{
			TotalChains:    totalChains,
			TotalFrequency: totalFrequency,
			StartingTokens: startingTokens,
		}
	}

	return &DBStats{
		Models:     models,
		Stats:      modelStats,
		VocabSize:  vocabLen,
		PrefixSize: prefixLen,
	}, nil
}
