package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/CTAG07/markovtext/pkg/markov"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type trainOptions struct {
	name           string
	stateSize      int
	retainOriginal bool
	wellFormed     bool
	rejectPattern  string
	lines          bool
}

func newTrainCmd(a *app) *cobra.Command {
	opts := &trainOptions{}

	cmd := &cobra.Command{
		Use:   "train [file|-]",
		Short: "Train a model from a text file",
		Long: `Train a model from a text file, or from standard input when the file is
"-" or omitted, and save it to the database. An existing model with the same
name is replaced.

Examples:
  markovtext train corpus.txt --name news
  markovtext train --state-size 3 < corpus.txt
  markovtext train headlines.txt --lines --name headlines`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, a, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Model name (default: generated)")
	cmd.Flags().IntVar(&opts.stateSize, "state-size", 0, "Number of preceding words a state holds (default: from config)")
	cmd.Flags().BoolVar(&opts.retainOriginal, "retain-original", true, "Keep the source text for the overlap test")
	cmd.Flags().BoolVar(&opts.wellFormed, "well-formed", true, "Skip sentences matching the reject pattern")
	cmd.Flags().StringVar(&opts.rejectPattern, "reject-pattern", "", "Regular expression for sentences to skip (default: from config)")
	cmd.Flags().BoolVar(&opts.lines, "lines", false, "Treat every line as a sentence")

	return cmd
}

func runTrain(cmd *cobra.Command, a *app, opts *trainOptions, args []string) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	cfg := a.config.Training
	if !cmd.Flags().Changed("state-size") {
		opts.stateSize = cfg.StateSize
	}
	if !cmd.Flags().Changed("retain-original") {
		opts.retainOriginal = cfg.RetainOriginal
	}
	if !cmd.Flags().Changed("well-formed") {
		opts.wellFormed = cfg.WellFormed
	}
	if !cmd.Flags().Changed("reject-pattern") {
		opts.rejectPattern = cfg.RejectPattern
	}
	if opts.name == "" {
		opts.name = "model_" + uuid.New().String()[:8]
	}

	buildOpts := []markov.BuildOption{
		markov.WithStateSize(opts.stateSize),
		markov.WithRetainOriginal(opts.retainOriginal),
		markov.WithWellFormed(opts.wellFormed),
		markov.WithRejectPattern(opts.rejectPattern),
		markov.WithLogger(a.logger),
	}
	if opts.lines {
		buildOpts = append(buildOpts, markov.WithSentenceSplitter(markov.SplitIntoLines))
	}

	text, err := markov.NewText(input, buildOpts...)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	s, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	model, err := s.SaveText(cmd.Context(), opts.name, text)
	if err != nil {
		return fmt.Errorf("saving model '%s': %w", opts.name, err)
	}

	a.logger.Debug("Training finished", slog.String("model_name", model.Name), slog.Int("input_bytes", len(input)))
	fmt.Fprintf(cmd.OutOrStdout(), "Saved model %s (state size %d, %d states)\n", model.Name, model.StateSize, text.Chain().Size())
	return nil
}

// readInput reads the named file, or standard input for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}
