package markov

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
)

const (
	// BeginTokenID is the reserved ID padding the state window before the
	// first word of a sentence.
	BeginTokenID = 0
	// EndTokenID is the reserved ID recorded after the last word of a sentence.
	EndTokenID = 1
	// BeginTokenText is the display text for the Begin token in exported models.
	BeginTokenText = "<BEGIN>"
	// EndTokenText is the display text for the End token in exported models.
	EndTokenText = "<END>"

	firstWordID = 2
)

// ErrStateSizeMismatch is returned when chains with different state sizes
// are combined.
var ErrStateSizeMismatch = errors.New("markov: chains have different state sizes")

// Transition is one possible next word for a state, with the number of times
// it was observed after that state.
type Transition struct {
	Word   string
	Weight int
	// End is set for the transition that terminates the sentence. Word holds
	// EndTokenText in that case.
	End bool
}

// transitions holds the distinct next tokens of one state in first-seen
// order, with raw weights and their running sums.
type transitions struct {
	prefix     []int
	next       []int
	weights    []int
	cumulative []int
	index      map[int]int
}

func (t *transitions) add(token, weight int) {
	if i, ok := t.index[token]; ok {
		t.weights[i] += weight
		return
	}
	t.index[token] = len(t.next)
	t.next = append(t.next, token)
	t.weights = append(t.weights, weight)
}

func (t *transitions) compile() {
	t.cumulative = make([]int, len(t.weights))
	total := 0
	for i, w := range t.weights {
		total += w
		t.cumulative[i] = total
	}
}

func (t *transitions) total() int {
	return t.cumulative[len(t.cumulative)-1]
}

// Chain is a word-level Markov model. It maps every window of stateSize
// preceding tokens to the weighted set of tokens that followed it during
// training. A Chain is read-only once built; generation only mutates the
// RandomSource it was given.
type Chain struct {
	stateSize int
	vocab     []string       // token_id -> token_text
	tokenIDs  map[string]int // token_text -> token_id
	states    map[string]*transitions
	order     []string // state keys in first-seen order
	rng       RandomSource
}

// EmptyChain is the model returned for degenerate training input. It has no
// states and every sentence generated from it is empty.
var EmptyChain = &Chain{rng: defaultRandom{}}

func newChain(stateSize int) *Chain {
	return &Chain{
		stateSize: stateSize,
		vocab:     []string{BeginTokenText, EndTokenText},
		tokenIDs:  make(map[string]int),
		states:    make(map[string]*transitions),
		rng:       defaultRandom{},
	}
}

// BuildChain trains a chain on a corpus of sentences, each given as its
// words. Every sentence contributes one transition per word, from the window
// of the stateSize previous tokens (padded with BeginTokenID), plus a final
// transition to EndTokenID. Repeated observations increase the weight of the
// same transition. EmptyChain is returned when stateSize < 1 or the corpus
// holds no non-empty sentence.
func BuildChain(corpus [][]string, stateSize int) *Chain {
	if stateSize < 1 || len(corpus) == 0 {
		return EmptyChain
	}

	c := newChain(stateSize)
	window := make([]int, stateSize)
	for _, sentence := range corpus {
		if len(sentence) == 0 {
			continue
		}
		resetWindow(window)
		for _, word := range sentence {
			id := c.tokenID(word)
			c.stateFor(window).add(id, 1)
			shiftWindow(window, id)
		}
		c.stateFor(window).add(EndTokenID, 1)
	}

	if len(c.states) == 0 {
		return EmptyChain
	}
	c.compile()
	return c
}

// CombineChains merges the transition counts of several chains into a new
// one. Each chain's counts are multiplied by the matching weight; a nil
// weights slice weighs every chain equally. Empty chains are skipped, and all
// remaining chains must share a state size.
func CombineChains(chains []*Chain, weights []int) (*Chain, error) {
	if weights == nil {
		weights = make([]int, len(chains))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(chains) {
		return nil, fmt.Errorf("markov: got %d weights for %d chains", len(weights), len(chains))
	}

	stateSize := 0
	for i, ch := range chains {
		if weights[i] < 1 {
			return nil, fmt.Errorf("markov: weight %d for chain %d must be positive", weights[i], i)
		}
		if ch == nil || ch.IsEmpty() {
			continue
		}
		if stateSize == 0 {
			stateSize = ch.stateSize
		} else if ch.stateSize != stateSize {
			return nil, fmt.Errorf("%w: %d and %d", ErrStateSizeMismatch, stateSize, ch.stateSize)
		}
	}
	if stateSize == 0 {
		return EmptyChain, nil
	}

	out := newChain(stateSize)
	prefix := make([]int, stateSize)
	for i, ch := range chains {
		if ch == nil || ch.IsEmpty() {
			continue
		}
		for _, key := range ch.order {
			src := ch.states[key]
			for j, id := range src.prefix {
				prefix[j] = out.remap(ch, id)
			}
			dst := out.stateFor(prefix)
			for j, id := range src.next {
				dst.add(out.remap(ch, id), src.weights[j]*weights[i])
			}
		}
	}
	out.compile()
	return out, nil
}

// GenerateSentence walks the chain from the all-Begin window, drawing each
// next word with probability proportional to its weight, until the End token
// is drawn or a window with no recorded transitions is reached.
func (c *Chain) GenerateSentence() []string {
	if c.IsEmpty() {
		return nil
	}
	window := make([]int, c.stateSize)
	resetWindow(window)
	return c.words(c.walk(window))
}

// Walk continues a sentence from the given words. The words fill the right
// end of the window and the rest is padded with the Begin token. The returned
// slice holds only the newly generated words. A start longer than the state
// size, or containing a word the chain has never seen, generates nothing.
func (c *Chain) Walk(start []string) []string {
	window, ok := c.window(start)
	if !ok {
		return nil
	}
	return c.words(c.walk(window))
}

// Transitions returns the possible next words of a state in the order they
// were first observed, with their raw weights. The state is padded the same
// way as in Walk. Unknown states have no transitions.
func (c *Chain) Transitions(state []string) []Transition {
	window, ok := c.window(state)
	if !ok {
		return nil
	}
	t, ok := c.states[string(appendPrefixKey(nil, window))]
	if !ok {
		return nil
	}
	out := make([]Transition, len(t.next))
	for i, id := range t.next {
		out[i] = Transition{Word: c.vocab[id], Weight: t.weights[i], End: id == EndTokenID}
	}
	return out
}

// Size returns the number of distinct states in the chain.
func (c *Chain) Size() int {
	return len(c.states)
}

// StateSize returns the number of preceding words a state holds.
func (c *Chain) StateSize() int {
	return c.stateSize
}

// IsEmpty reports whether the chain has no states.
func (c *Chain) IsEmpty() bool {
	return c == EmptyChain || len(c.states) == 0
}

// SetRandom replaces the source used for all subsequent sampling. Passing nil
// restores the default source. EmptyChain never samples and ignores the call.
func (c *Chain) SetRandom(source RandomSource) {
	if c == EmptyChain {
		return
	}
	if source == nil {
		source = defaultRandom{}
	}
	c.rng = source
}

func (c *Chain) walk(window []int) []int {
	var out []int
	var keyBuf []byte
	for {
		keyBuf = appendPrefixKey(keyBuf[:0], window)
		next := c.sample(keyBuf)
		if next == EndTokenID {
			return out
		}
		out = append(out, next)
		shiftWindow(window, next)
	}
}

// sample draws the next token for a state key. Targets are drawn in
// [1, total] and resolved to the first token whose running weight reaches
// the target. An unknown state always ends the sentence.
func (c *Chain) sample(key []byte) int {
	t, ok := c.states[string(key)]
	if !ok {
		return EndTokenID
	}
	total := t.total()
	draw := c.rng.IntN(total)
	if draw < 0 || draw >= total {
		panic(fmt.Sprintf("markov: RandomSource.IntN(%d) returned %d, outside [0, %d)", total, draw, total))
	}
	return t.next[sort.SearchInts(t.cumulative, draw+1)]
}

func (c *Chain) tokenID(word string) int {
	if id, ok := c.tokenIDs[word]; ok {
		return id
	}
	id := len(c.vocab)
	c.vocab = append(c.vocab, word)
	c.tokenIDs[word] = id
	return id
}

// remap translates a token ID of src into this chain's vocabulary.
func (c *Chain) remap(src *Chain, id int) int {
	if id < firstWordID {
		return id
	}
	return c.tokenID(src.vocab[id])
}

// stateFor returns the transitions of a window, creating them on first use.
func (c *Chain) stateFor(window []int) *transitions {
	key := appendPrefixKey(nil, window)
	if t, ok := c.states[string(key)]; ok {
		return t
	}
	t := &transitions{
		prefix: append([]int(nil), window...),
		index:  make(map[int]int),
	}
	c.states[string(key)] = t
	c.order = append(c.order, string(key))
	return t
}

func (c *Chain) hasState(window []int) bool {
	_, ok := c.states[string(appendPrefixKey(nil, window))]
	return ok
}

// startWindows returns, in first-seen order, every state whose words after
// the Begin padding start with the given words.
func (c *Chain) startWindows(words []string) [][]int {
	ids := make([]int, len(words))
	for i, word := range words {
		id, ok := c.tokenIDs[word]
		if !ok {
			return nil
		}
		ids[i] = id
	}

	var windows [][]int
	for _, key := range c.order {
		prefix := c.states[key].prefix
		rest := trimBegin(prefix)
		if len(rest) >= len(ids) && slices.Equal(rest[:len(ids)], ids) {
			windows = append(windows, append([]int(nil), prefix...))
		}
	}
	return windows
}

func (c *Chain) shuffle(windows [][]int) {
	for i := len(windows) - 1; i > 0; i-- {
		j := c.rng.IntN(i + 1)
		windows[i], windows[j] = windows[j], windows[i]
	}
}

func (c *Chain) compile() {
	for _, t := range c.states {
		t.compile()
	}
}

func (c *Chain) window(start []string) ([]int, bool) {
	if c.IsEmpty() || len(start) > c.stateSize {
		return nil, false
	}
	window := make([]int, c.stateSize)
	resetWindow(window)
	offset := c.stateSize - len(start)
	for i, word := range start {
		id, ok := c.tokenIDs[word]
		if !ok {
			return nil, false
		}
		window[offset+i] = id
	}
	return window, true
}

func (c *Chain) words(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.vocab[id]
	}
	return out
}

// appendPrefixKey encodes a window as its space-separated token IDs.
func appendPrefixKey(keyBuf []byte, window []int) []byte {
	for j, tokenID := range window {
		if j > 0 {
			keyBuf = append(keyBuf, ' ')
		}
		keyBuf = strconv.AppendInt(keyBuf, int64(tokenID), 10)
	}
	return keyBuf
}

func resetWindow(window []int) {
	for i := range window {
		window[i] = BeginTokenID
	}
}

func shiftWindow(window []int, id int) {
	copy(window, window[1:])
	window[len(window)-1] = id
}
