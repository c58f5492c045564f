package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/CTAG07/markovtext/pkg/markov"
	"github.com/spf13/cobra"
)

var errNoSentence = errors.New("no sentence could be generated")

type generateOptions struct {
	model    string
	count    int
	sentence markov.SentenceOptions
	maxChars int
	start    string
	strict   bool
	seed     uint64
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sentences from a stored model",
		Long: `Generate sentences from a stored model. Candidates that overlap the
source text too much are discarded and retried.

Examples:
  markovtext generate --model news -n 5
  markovtext generate --model news --max-chars 140
  markovtext generate --model news --start "The president" --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, opts)
		},
	}

	defaults := markov.DefaultSentenceOptions()
	cmd.Flags().StringVar(&opts.model, "model", "", "Model to generate from")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 1, "Number of sentences to generate")
	cmd.Flags().IntVar(&opts.sentence.Tries, "tries", defaults.Tries, "Candidates per sentence before giving up")
	cmd.Flags().Float64Var(&opts.sentence.MaxOverlapRatio, "max-overlap-ratio", defaults.MaxOverlapRatio, "Overlap window as a fraction of the sentence length")
	cmd.Flags().IntVar(&opts.sentence.MaxOverlapWords, "max-overlap-words", defaults.MaxOverlapWords, "Upper bound of the overlap window in words")
	cmd.Flags().BoolVar(&opts.sentence.TestOutput, "test-output", defaults.TestOutput, "Reject sentences that overlap the source text")
	cmd.Flags().IntVar(&opts.sentence.MaxWords, "max-words", defaults.MaxWords, "Reject sentences with more words (0 for no limit)")
	cmd.Flags().IntVar(&opts.maxChars, "max-chars", 0, "Generate short sentences of at most this many characters")
	cmd.Flags().IntVar(&opts.sentence.MinChars, "min-chars", defaults.MinChars, "Minimum length of short sentences")
	cmd.Flags().StringVar(&opts.start, "start", "", "Words the sentence must begin with")
	cmd.Flags().BoolVar(&opts.strict, "strict", true, "With --start, require the words to open a source sentence")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for reproducible output")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, opts *generateOptions) error {
	if opts.count < 1 {
		return fmt.Errorf("count must be positive, got %d", opts.count)
	}
	applyGenerationConfig(cmd, a.config.Generation, &opts.sentence)

	s, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	text, err := s.LoadText(cmd.Context(), opts.model)
	if err != nil {
		return fmt.Errorf("loading model '%s': %w", opts.model, err)
	}
	text.SetLogger(a.logger)
	if cmd.Flags().Changed("seed") {
		text.SetRandom(markov.NewSeededRandom(opts.seed))
	}

	sentenceOpt := markov.WithSentenceOptions(opts.sentence)
	generated := 0
	for i := 0; i < opts.count; i++ {
		var sentence string
		var ok bool
		switch {
		case opts.start != "":
			sentence, ok, err = text.MakeSentenceWithStart(opts.start, opts.strict, sentenceOpt)
			if err != nil {
				return err
			}
		case opts.maxChars > 0:
			sentence, ok = text.MakeShortSentence(opts.maxChars, sentenceOpt)
		default:
			sentence, ok = text.MakeSentence(sentenceOpt)
		}
		if !ok {
			a.logger.Warn("Generation gave up", slog.String("model_name", opts.model), slog.Int("tries", opts.sentence.Tries))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), sentence)
		generated++
	}

	if generated == 0 {
		return errNoSentence
	}
	return nil
}

// applyGenerationConfig fills every generation setting not given on the
// command line from the configuration.
func applyGenerationConfig(cmd *cobra.Command, cfg *GenerationConfig, o *markov.SentenceOptions) {
	flags := cmd.Flags()
	if !flags.Changed("tries") {
		o.Tries = cfg.Tries
	}
	if !flags.Changed("max-overlap-ratio") {
		o.MaxOverlapRatio = cfg.MaxOverlapRatio
	}
	if !flags.Changed("max-overlap-words") {
		o.MaxOverlapWords = cfg.MaxOverlapWords
	}
	if !flags.Changed("test-output") {
		o.TestOutput = cfg.TestOutput
	}
	if !flags.Changed("max-words") {
		o.MaxWords = cfg.MaxWords
	}
	if !flags.Changed("min-chars") {
		o.MinChars = cfg.MinChars
	}
}
