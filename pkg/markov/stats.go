package markov

// ChainStats holds aggregated statistics for a single chain.
type ChainStats struct {
	States        int // The number of distinct states
	Transitions   int // The number of unique state->next_word links
	TotalWeight   int // The sum of weights of all links; the total number of trained transitions
	StartingWords int // The number of distinct words that can open a sentence
	Vocabulary    int // The number of distinct words, excluding the reserved tokens
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() ChainStats {
	if c.IsEmpty() {
		return ChainStats{}
	}

	stats := ChainStats{
		States:     len(c.states),
		Vocabulary: len(c.vocab) - firstWordID,
	}
	for _, t := range c.states {
		stats.Transitions += len(t.next)
		stats.TotalWeight += t.total()
	}

	start := make([]int, c.stateSize)
	resetWindow(start)
	if t, ok := c.states[string(appendPrefixKey(nil, start))]; ok {
		for _, id := range t.next {
			if id != EndTokenID {
				stats.StartingWords++
			}
		}
	}
	return stats
}
