package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/CTAG07/markovtext/pkg/markov"
)

// SQLite's default variable limit is 999, so around half that is good
const batchSize = 500

// LoadText rebuilds a stored model. The result has the same state order and
// transition order as the model that was saved, so it generates the same
// sentences from the same RandomSource. Token IDs are renumbered. sql.ErrNoRows
// is returned if no such model exists.
func (s *Store) LoadText(ctx context.Context, name string) (*markov.Text, error) {
	model, err := s.GetModelInfo(ctx, name)
	if err != nil {
		return nil, err
	}

	var sourceText string
	if err = s.stmtGetModelSource.QueryRowContext(ctx, model.Id).Scan(&sourceText); err != nil {
		return nil, fmt.Errorf("could not load source text for model %d: %w", model.Id, err)
	}

	rows, err := s.stmtGetChains.QueryContext(ctx, model.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query chains for model %d: %w", model.Id, err)
	}

	type storedLink struct {
		prefixID, nextTokenID, frequency int
	}
	var links []storedLink
	prefixIDs := make(map[int]struct{})
	for rows.Next() {
		var link storedLink
		if err := rows.Scan(&link.prefixID, &link.nextTokenID, &link.frequency); err != nil {
			_ = rows.Close()
			return nil, err
		}
		links = append(links, link)
		prefixIDs[link.prefixID] = struct{}{}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating chain rows: %w", err)
	}

	prefixTexts, err := s.lookupTexts(ctx, "markov_prefixes", "prefix_id", "prefix_text", mapKeys(prefixIDs))
	if err != nil {
		return nil, fmt.Errorf("could not load prefixes: %w", err)
	}

	prefixes := make(map[int][]int, len(prefixTexts))
	tokenIDs := make(map[int]struct{})
	for id, text := range prefixTexts {
		window, err := parsePrefix(text)
		if err != nil {
			return nil, fmt.Errorf("corrupt prefix %d: %w", id, err)
		}
		prefixes[id] = window
		for _, tokenID := range window {
			tokenIDs[tokenID] = struct{}{}
		}
	}
	for _, link := range links {
		tokenIDs[link.nextTokenID] = struct{}{}
	}
	delete(tokenIDs, markov.BeginTokenID)
	delete(tokenIDs, markov.EndTokenID)

	tokenTexts, err := s.lookupTexts(ctx, "markov_vocabulary", "token_id", "token_text", mapKeys(tokenIDs))
	if err != nil {
		return nil, fmt.Errorf("could not load vocabulary: %w", err)
	}

	// Database token IDs are renumbered in order of first use.
	chain := markov.ExportedChain{
		StateSize:  model.StateSize,
		Vocabulary: []string{markov.BeginTokenText, markov.EndTokenText},
	}
	localIDs := map[int]int{markov.BeginTokenID: markov.BeginTokenID, markov.EndTokenID: markov.EndTokenID}
	localID := func(dbID int) (int, error) {
		if id, ok := localIDs[dbID]; ok {
			return id, nil
		}
		text, ok := tokenTexts[dbID]
		if !ok {
			return 0, fmt.Errorf("token %d is missing from the vocabulary", dbID)
		}
		id := len(chain.Vocabulary)
		chain.Vocabulary = append(chain.Vocabulary, text)
		localIDs[dbID] = id
		return id, nil
	}

	lastPrefix := -1
	for _, link := range links {
		if link.prefixID != lastPrefix {
			window, ok := prefixes[link.prefixID]
			if !ok {
				return nil, fmt.Errorf("prefix %d is missing", link.prefixID)
			}
			state := markov.ExportedState{Prefix: make([]int, len(window))}
			for i, dbID := range window {
				if state.Prefix[i], err = localID(dbID); err != nil {
					return nil, err
				}
			}
			chain.States = append(chain.States, state)
			lastPrefix = link.prefixID
		}

		next, err := localID(link.nextTokenID)
		if err != nil {
			return nil, err
		}
		state := &chain.States[len(chain.States)-1]
		state.Next = append(state.Next, next)
		state.Weights = append(state.Weights, link.frequency)
	}

	text, err := markov.TextFromExported(markov.ExportedText{
		StateSize:     model.StateSize,
		Chain:         chain,
		SourceText:    sourceText,
		WellFormed:    model.WellFormed,
		RejectPattern: model.RejectPattern,
	})
	if err != nil {
		return nil, fmt.Errorf("could not rebuild model '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Model loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("states_loaded", len(chain.States)),
		slog.Int("chains_loaded", len(links)),
	)
	return text, nil
}

// lookupTexts fetches the text column of every requested id, in batches to
// stay under SQLite's variable limit.
func (s *Store) lookupTexts(ctx context.Context, table, idColumn, textColumn string, ids []int) (map[int]string, error) {
	texts := make(map[int]string, len(ids))
	for i := 0; i < len(ids); i += batchSize {
		batch := intSliceToInterface(ids[i:min(i+batchSize, len(ids))])
		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (?%s)", idColumn, textColumn, table, idColumn, strings.Repeat(",?", len(batch)-1))

		rows, err := s.db.QueryContext(ctx, query, batch...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int
			var text string
			if err := rows.Scan(&id, &text); err != nil {
				_ = rows.Close()
				return nil, err
			}
			texts[id] = text
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return texts, nil
}

func parsePrefix(text string) ([]int, error) {
	fields := strings.Split(text, " ")
	window := make([]int, len(fields))
	for i, field := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		window[i] = id
	}
	return window, nil
}

func mapKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// intSliceToInterface is a helper to convert []int to []interface{} for SQL args.
func intSliceToInterface(s []int) []interface{} {
	if s == nil {
		return nil
	}
	i := make([]interface{}, len(s))
	for j, v := range s {
		i[j] = v
	}
	return i
}
