package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// ExportedText is the serializable representation of a Text, used for
// JSON-based import and export and by storage backends.
type ExportedText struct {
	StateSize     int           `json:"state_size"`
	Chain         ExportedChain `json:"chain"`
	SourceText    string        `json:"source_text,omitempty"`
	WellFormed    bool          `json:"well_formed"`
	RejectPattern string        `json:"reject_pattern,omitempty"`
}

// ExportedChain is the serializable representation of a Chain. Vocabulary is
// indexed by token ID; entries 0 and 1 hold BeginTokenText and EndTokenText
// and are ignored on import.
type ExportedChain struct {
	StateSize  int             `json:"state_size"`
	Vocabulary []string        `json:"vocabulary"`
	States     []ExportedState `json:"states"`
}

// ExportedState is one state of an exported chain: its window of token IDs
// and the possible next token IDs with their raw weights, in first-seen
// order. The order is part of the model: it decides which word a given
// random draw selects.
type ExportedState struct {
	Prefix  []int `json:"prefix"`
	Next    []int `json:"next"`
	Weights []int `json:"weights"`
}

// Exported returns the serializable form of the chain.
func (c *Chain) Exported() ExportedChain {
	if c.IsEmpty() {
		return ExportedChain{}
	}
	exported := ExportedChain{
		StateSize:  c.stateSize,
		Vocabulary: append([]string(nil), c.vocab...),
		States:     make([]ExportedState, 0, len(c.order)),
	}
	for _, key := range c.order {
		t := c.states[key]
		exported.States = append(exported.States, ExportedState{
			Prefix:  append([]int(nil), t.prefix...),
			Next:    append([]int(nil), t.next...),
			Weights: append([]int(nil), t.weights...),
		})
	}
	return exported
}

// ChainFromExported rebuilds a chain from its serializable form. A form
// without states yields EmptyChain. Vocabulary entries must be words the
// tokenizer could produce: non-empty and free of whitespace. The result samples exactly like the
// exported chain given the same RandomSource.
func ChainFromExported(exported ExportedChain) (*Chain, error) {
	if len(exported.States) == 0 {
		return EmptyChain, nil
	}
	if exported.StateSize < 1 {
		return nil, fmt.Errorf("invalid state size %d", exported.StateSize)
	}
	if len(exported.Vocabulary) < firstWordID {
		return nil, fmt.Errorf("vocabulary has %d entries, the reserved tokens need %d", len(exported.Vocabulary), firstWordID)
	}

	c := newChain(exported.StateSize)
	for id, text := range exported.Vocabulary[firstWordID:] {
		if text == "" || wordSplitRegex.MatchString(text) {
			return nil, fmt.Errorf("consistency error: vocabulary entry %d (%q) is not a single word", id+firstWordID, text)
		}
		if got := c.tokenID(text); got != id+firstWordID {
			return nil, fmt.Errorf("consistency error: duplicate vocabulary entry %q", text)
		}
	}

	vocabLen := len(c.vocab)
	for i, state := range exported.States {
		if len(state.Prefix) != c.stateSize {
			return nil, fmt.Errorf("consistency error: state %d has %d prefix tokens, want %d", i, len(state.Prefix), c.stateSize)
		}
		for _, id := range state.Prefix {
			if id < 0 || id >= vocabLen || id == EndTokenID {
				return nil, fmt.Errorf("consistency error: state %d has invalid prefix token id %d", i, id)
			}
		}
		if len(state.Next) == 0 || len(state.Next) != len(state.Weights) {
			return nil, fmt.Errorf("consistency error: state %d has %d next tokens and %d weights", i, len(state.Next), len(state.Weights))
		}
		if c.hasState(state.Prefix) {
			return nil, fmt.Errorf("consistency error: state %d is a duplicate", i)
		}

		t := c.stateFor(state.Prefix)
		for j, id := range state.Next {
			if id <= BeginTokenID || id >= vocabLen {
				return nil, fmt.Errorf("consistency error: state %d has invalid next token id %d", i, id)
			}
			if state.Weights[j] < 1 {
				return nil, fmt.Errorf("consistency error: state %d has non-positive weight %d", i, state.Weights[j])
			}
			if _, dup := t.index[id]; dup {
				return nil, fmt.Errorf("consistency error: state %d lists next token id %d twice", i, id)
			}
			t.add(id, state.Weights[j])
		}
	}

	c.compile()
	return c, nil
}

// Exported returns the serializable form of the text model.
func (t *Text) Exported() ExportedText {
	return ExportedText{
		StateSize:     t.stateSize,
		Chain:         t.chain.Exported(),
		SourceText:    t.sourceText,
		WellFormed:    t.wellFormed,
		RejectPattern: t.RejectPattern(),
	}
}

// TextFromExported rebuilds a text model from its serializable form. A state
// size below 1 yields EmptyText.
func TextFromExported(exported ExportedText) (*Text, error) {
	if exported.StateSize < 1 {
		return EmptyText, nil
	}
	if len(exported.Chain.States) > 0 && exported.Chain.StateSize != exported.StateSize {
		return nil, fmt.Errorf("%w: text %d, chain %d", ErrStateSizeMismatch, exported.StateSize, exported.Chain.StateSize)
	}

	reject, err := compileRejectPattern(exported.RejectPattern)
	if err != nil {
		return nil, err
	}
	chain, err := ChainFromExported(exported.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild chain: %w", err)
	}

	t := &Text{
		chain:         chain,
		stateSize:     exported.StateSize,
		wellFormed:    exported.WellFormed,
		rejectPattern: reject,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.setSourceText(exported.SourceText)
	return t, nil
}

// Export serializes the model as indented JSON and writes it to w.
func (t *Text) Export(w io.Writer) error {
	exported := t.Exported()

	t.logger.Info("Model exported",
		slog.Int("state_size", exported.StateSize),
		slog.Int("vocab_items_exported", len(exported.Chain.Vocabulary)),
		slog.Int("states_exported", len(exported.Chain.States)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportText reads a model written by Export.
func ImportText(r io.Reader) (*Text, error) {
	var imported ExportedText
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json model: %w", err)
	}
	return TextFromExported(imported)
}
