package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrStartTooLong is returned when a start has more words than the state size.
	ErrStartTooLong = errors.New("markov: start has more words than the state size")
	// ErrStartNotFound is returned when no trained state begins with the start words.
	ErrStartNotFound = errors.New("markov: no state begins with the given start")
)

var defaultRejectRegex = regexp.MustCompile(DefaultRejectPattern)

// Text is a model of a body of text. It owns a Chain trained on the text's
// sentences and, optionally, a flattened copy of those sentences that
// generated output is checked against so that it does not repeat the source
// almost word for word.
type Text struct {
	chain         *Chain
	stateSize     int
	sourceText    string
	sourceLower   string
	wellFormed    bool
	rejectPattern *regexp.Regexp
	logger        *slog.Logger
}

// EmptyText is the model returned for an empty input or a state size below 1.
var EmptyText = &Text{
	chain:  EmptyChain,
	logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
}

// NewText splits input into sentences, drops blank sentences and, when the
// text is well-formed, sentences matching the reject pattern, then trains a
// chain on the words of the remaining ones. EmptyText is returned for an
// empty input or a state size below 1. An error is only returned for a reject
// pattern that does not compile.
func NewText(input string, opts ...BuildOption) (*Text, error) {
	options := &buildOptions{
		stateSize:      2,
		retainOriginal: true,
		wellFormed:     true,
		rejectPattern:  DefaultRejectPattern,
		splitter:       SplitIntoSentences,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(options)
	}

	reject, err := compileRejectPattern(options.rejectPattern)
	if err != nil {
		return nil, err
	}

	if options.stateSize < 1 || input == "" {
		return EmptyText, nil
	}

	t := &Text{
		stateSize:     options.stateSize,
		wellFormed:    options.wellFormed,
		rejectPattern: reject,
		logger:        options.logger,
	}

	var corpus [][]string
	rejected := 0
	for _, sentence := range options.splitter(input) {
		if !t.testSentenceInput(sentence) {
			rejected++
			continue
		}
		corpus = append(corpus, SplitIntoWords(strings.TrimSpace(sentence)))
	}

	t.chain = BuildChain(corpus, t.stateSize)
	if options.retainOriginal && len(corpus) > 0 {
		t.setSourceText(joinCorpus(corpus))
	}

	t.logger.Info("Text model built",
		slog.Int("state_size", t.stateSize),
		slog.Int("sentences_accepted", len(corpus)),
		slog.Int("sentences_rejected", rejected),
		slog.Int("states", t.chain.Size()),
		slog.Bool("source_retained", t.sourceText != ""),
	)

	return t, nil
}

// CombineTexts merges several models into one. Chains are combined with
// CombineChains; the source text is kept only if every input kept one. The
// first text's well-formedness settings are carried over.
func CombineTexts(texts []*Text, weights []int) (*Text, error) {
	if len(texts) == 0 {
		return EmptyText, nil
	}

	chains := make([]*Chain, len(texts))
	sources := make([]string, 0, len(texts))
	retained := true
	for i, t := range texts {
		if t == nil {
			return nil, fmt.Errorf("markov: text %d is nil", i)
		}
		chains[i] = t.chain
		if t.IsEmpty() {
			continue
		}
		if t.sourceText == "" {
			retained = false
		}
		sources = append(sources, t.sourceText)
	}

	chain, err := CombineChains(chains, weights)
	if err != nil {
		return nil, err
	}
	if chain.IsEmpty() {
		return EmptyText, nil
	}

	first := texts[0]
	combined := &Text{
		chain:         chain,
		stateSize:     chain.StateSize(),
		wellFormed:    first.wellFormed,
		rejectPattern: first.rejectPattern,
		logger:        first.logger,
	}
	if retained {
		combined.setSourceText(strings.Join(sources, " "))
	}
	return combined, nil
}

// MakeSentence generates candidate sentences until one is accepted or the
// configured number of tries is used up. A candidate is discarded when it is
// empty, longer than MaxWords, or, with TestOutput, overlaps the retained
// source text too much. The boolean is false when no sentence was accepted.
// An empty candidate uses up a try even without TestOutput, so an empty
// model reports false rather than an empty sentence.
func (t *Text) MakeSentence(opts ...SentenceOption) (string, bool) {
	return t.makeSentence(t.chain.GenerateSentence, newSentenceOptions(opts))
}

// MakeShortSentence is like MakeSentence but also requires the sentence to be
// between MinChars and maxChars characters long. Up to Tries calls to
// MakeSentence are made.
func (t *Text) MakeShortSentence(maxChars int, opts ...SentenceOption) (string, bool) {
	options := newSentenceOptions(opts)
	for attempt := 0; attempt < options.Tries; attempt++ {
		sentence, ok := t.makeSentence(t.chain.GenerateSentence, options)
		if !ok {
			continue
		}
		if n := utf8.RuneCountInString(sentence); n >= options.MinChars && n <= maxChars {
			return sentence, true
		}
	}
	return "", false
}

// MakeSentenceWithStart generates a sentence beginning with the given words.
// With as many words as the state size, generation continues from exactly
// that state. With fewer words and strict set, the words must open a
// sentence in the source; without strict, any state whose words begin with
// them is a candidate, and candidates are tried in random order.
// ErrStartTooLong and ErrStartNotFound report unusable starts; exhausting
// the tries on every candidate is reported as a false boolean.
func (t *Text) MakeSentenceWithStart(beginning string, strict bool, opts ...SentenceOption) (string, bool, error) {
	trimmed := strings.TrimSpace(beginning)
	if trimmed == "" {
		sentence, ok := t.MakeSentence(opts...)
		return sentence, ok, nil
	}

	words := SplitIntoWords(trimmed)
	if t.IsEmpty() {
		return "", false, fmt.Errorf("%w: %q", ErrStartNotFound, beginning)
	}
	if len(words) > t.stateSize {
		return "", false, fmt.Errorf("%w: %d words, state size %d", ErrStartTooLong, len(words), t.stateSize)
	}

	var windows [][]int
	if strict || len(words) == t.stateSize {
		if window, ok := t.chain.window(words); ok && t.chain.hasState(window) {
			windows = append(windows, window)
		}
	} else {
		windows = t.chain.startWindows(words)
		t.chain.shuffle(windows)
	}
	if len(windows) == 0 {
		return "", false, fmt.Errorf("%w: %q", ErrStartNotFound, beginning)
	}

	options := newSentenceOptions(opts)
	for _, window := range windows {
		prefix := t.chain.words(trimBegin(window))
		generate := func() []string {
			walked := t.chain.walk(append([]int(nil), window...))
			return append(append([]string(nil), prefix...), t.chain.words(walked)...)
		}
		if sentence, ok := t.makeSentence(generate, options); ok {
			return sentence, true, nil
		}
	}
	return "", false, nil
}

func (t *Text) makeSentence(generate func() []string, options SentenceOptions) (string, bool) {
	for attempt := 0; attempt < options.Tries; attempt++ {
		words := generate()
		if len(words) == 0 {
			t.logger.Debug("Candidate rejected", slog.Int("attempt", attempt), slog.String("reason", "empty"))
			continue
		}
		if options.MaxWords > 0 && len(words) > options.MaxWords {
			t.logger.Debug("Candidate rejected",
				slog.Int("attempt", attempt),
				slog.String("reason", "too_long"),
				slog.Int("words", len(words)),
				slog.Int("max_words", options.MaxWords),
			)
			continue
		}
		if options.TestOutput && !t.testSentenceOutput(words, options.MaxOverlapRatio, options.MaxOverlapWords) {
			t.logger.Debug("Candidate rejected", slog.Int("attempt", attempt), slog.String("reason", "overlap"))
			continue
		}
		return strings.Join(words, " "), true
	}

	t.logger.Debug("Generation exhausted", slog.Int("tries", options.Tries))
	return "", false
}

// testSentenceInput accepts a training sentence that is not blank and, for a
// well-formed text, does not match the reject pattern.
func (t *Text) testSentenceInput(sentence string) bool {
	if strings.TrimSpace(sentence) == "" {
		return false
	}
	return !t.wellFormed || t.rejectPattern == nil || !t.rejectPattern.MatchString(sentence)
}

// testSentenceOutput slides a window over the candidate and fails it if any
// window appears verbatim, ignoring case, in the retained source text. The
// window is the smaller of maxOverlapWords and maxOverlapRatio of the
// candidate length.
func (t *Text) testSentenceOutput(words []string, maxOverlapRatio float64, maxOverlapWords int) bool {
	if t.sourceLower == "" {
		return true
	}

	overlapRatio := int(math.RoundToEven(maxOverlapRatio * float64(len(words))))
	overlapMax := max(min(maxOverlapWords, overlapRatio), 0)
	gramCount := max(len(words)-overlapMax, 1)
	gramLength := min(len(words), overlapMax)

	for i := 0; i < gramCount; i++ {
		gram := strings.ToLower(strings.Join(words[i:i+gramLength], " "))
		if strings.Contains(t.sourceLower, gram) {
			return false
		}
	}
	return true
}

func (t *Text) setSourceText(source string) {
	t.sourceText = source
	t.sourceLower = strings.ToLower(source)
}

// Chain returns the model's chain.
func (t *Text) Chain() *Chain {
	return t.chain
}

// StateSize returns the number of preceding words a state holds.
func (t *Text) StateSize() int {
	return t.stateSize
}

// SourceText returns the retained sentences joined by spaces, or "" when the
// source was not retained.
func (t *Text) SourceText() string {
	return t.sourceText
}

// WellFormed reports whether training rejected sentences matching the reject pattern.
func (t *Text) WellFormed() bool {
	return t.wellFormed
}

// RejectPattern returns the source of the reject pattern, or "" if none is set.
func (t *Text) RejectPattern() string {
	if t.rejectPattern == nil {
		return ""
	}
	return t.rejectPattern.String()
}

// IsEmpty reports whether the model can generate anything.
func (t *Text) IsEmpty() bool {
	return t == EmptyText || t.chain.IsEmpty()
}

// SetRandom replaces the random source of the underlying chain.
func (t *Text) SetRandom(source RandomSource) {
	t.chain.SetRandom(source)
}

// SetLogger sets the logger for the Text. By default, all logs are discarded.
func (t *Text) SetLogger(logger *slog.Logger) {
	if logger != nil && t != EmptyText {
		t.logger = logger
	}
}

func compileRejectPattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	if expr == DefaultRejectPattern {
		return defaultRejectRegex, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("markov: invalid reject pattern %q: %w", expr, err)
	}
	return re, nil
}

func joinCorpus(corpus [][]string) string {
	var builder strings.Builder
	for i, words := range corpus {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(strings.Join(words, " "))
	}
	return builder.String()
}

// trimBegin drops the leading Begin padding of a window.
func trimBegin(window []int) []int {
	for i, id := range window {
		if id != BeginTokenID {
			return window[i:]
		}
	}
	return nil
}
