package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/CTAG07/markovtext/pkg/store"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database and per-model statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := s.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Models:     %d\n", len(stats.Models))
			fmt.Fprintf(out, "Vocabulary: %d\n", stats.VocabSize)
			fmt.Fprintf(out, "Prefixes:   %d\n", stats.PrefixSize)
			if len(stats.Models) == 0 {
				return nil
			}

			models := slices.Clone(stats.Models)
			slices.SortFunc(models, func(x, y store.ModelInfo) int { return strings.Compare(x.Name, y.Name) })

			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE SIZE\tCHAINS\tFREQUENCY\tSTARTERS")
			for _, model := range models {
				ms := stats.Stats[model.Id]
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", model.Name, model.StateSize, ms.TotalChains, ms.TotalFrequency, ms.StartingTokens)
			}
			return w.Flush()
		},
	}
}
