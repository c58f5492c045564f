package markov

import "log/slog"

// DefaultRejectPattern flags sentences that look broken once taken out of
// context: apostrophes touching whitespace or the sentence edges, and any
// double quote, parenthesis or square bracket.
const DefaultRejectPattern = `(^')|('$)|\s'|'\s|["(\(\)\[\])]`

// buildOptions is used by NewText to configure default options.
type buildOptions struct {
	stateSize      int
	retainOriginal bool
	wellFormed     bool
	rejectPattern  string
	splitter       func(string) []string
	logger         *slog.Logger
}

// BuildOption configures how NewText turns raw text into a model.
type BuildOption func(*buildOptions)

// WithStateSize sets the number of preceding words a state holds.
// Default: 2
func WithStateSize(n int) BuildOption {
	return func(o *buildOptions) { o.stateSize = n }
}

// WithRetainOriginal controls whether the accepted sentences are kept for the
// overlap test performed during generation.
// Default: true
func WithRetainOriginal(retain bool) BuildOption {
	return func(o *buildOptions) { o.retainOriginal = retain }
}

// WithWellFormed controls whether sentences matching the reject pattern are
// left out of training.
// Default: true
func WithWellFormed(wellFormed bool) BuildOption {
	return func(o *buildOptions) { o.wellFormed = wellFormed }
}

// WithRejectPattern overrides the regular expression used to reject training
// sentences when the text is well-formed.
// Default: DefaultRejectPattern
func WithRejectPattern(expr string) BuildOption {
	return func(o *buildOptions) { o.rejectPattern = expr }
}

// WithSentenceSplitter replaces the function that splits the input into
// sentences, for example with SplitIntoLines.
// Default: SplitIntoSentences
func WithSentenceSplitter(split func(string) []string) BuildOption {
	return func(o *buildOptions) {
		if split != nil {
			o.splitter = split
		}
	}
}

// WithLogger sets the logger used while building and by the resulting Text.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// SentenceOptions holds the parameters of a generation request. It is a plain
// value; build one with DefaultSentenceOptions and SentenceOption functions.
type SentenceOptions struct {
	// Tries is the number of candidate sentences generated before giving up.
	Tries int
	// MaxOverlapRatio caps the overlap window as a fraction of the candidate length.
	MaxOverlapRatio float64
	// MaxOverlapWords caps the overlap window in words.
	MaxOverlapWords int
	// TestOutput enables the overlap test against the retained source text.
	TestOutput bool
	// MaxWords rejects longer candidates. Zero means no limit.
	MaxWords int
	// MinChars is the lower bound used by MakeShortSentence.
	MinChars int
}

// DefaultSentenceOptions returns the options used when none are given.
func DefaultSentenceOptions() SentenceOptions {
	return SentenceOptions{
		Tries:           10,
		MaxOverlapRatio: 0.7,
		MaxOverlapWords: 15,
		TestOutput:      true,
	}
}

// SentenceOption is a function that configures generation parameters. It's
// used as a variadic argument in MakeSentence and its variants.
type SentenceOption func(*SentenceOptions)

// WithTries sets how many candidates are generated before giving up.
func WithTries(n int) SentenceOption {
	return func(o *SentenceOptions) { o.Tries = n }
}

// WithMaxOverlapRatio sets the overlap window as a fraction of the candidate length.
func WithMaxOverlapRatio(ratio float64) SentenceOption {
	return func(o *SentenceOptions) { o.MaxOverlapRatio = ratio }
}

// WithMaxOverlapWords sets the upper bound of the overlap window in words.
func WithMaxOverlapWords(n int) SentenceOption {
	return func(o *SentenceOptions) { o.MaxOverlapWords = n }
}

// WithTestOutput enables or disables the overlap test.
func WithTestOutput(test bool) SentenceOption {
	return func(o *SentenceOptions) { o.TestOutput = test }
}

// WithMaxWords rejects candidates with more than n words. Zero disables the limit.
func WithMaxWords(n int) SentenceOption {
	return func(o *SentenceOptions) { o.MaxWords = n }
}

// WithMinChars sets the minimum length, in characters, accepted by MakeShortSentence.
func WithMinChars(n int) SentenceOption {
	return func(o *SentenceOptions) { o.MinChars = n }
}

// WithSentenceOptions replaces every parameter with the given value.
func WithSentenceOptions(value SentenceOptions) SentenceOption {
	return func(o *SentenceOptions) { *o = value }
}

func newSentenceOptions(opts []SentenceOption) SentenceOptions {
	options := DefaultSentenceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
