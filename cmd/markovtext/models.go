package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/CTAG07/markovtext/pkg/markov"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage stored models",
		Long: `List, remove, export, import, combine and prune stored models.

Examples:
  markovtext models list
  markovtext models export news -o news.json
  markovtext models import news.json --name news-copy
  markovtext models combine mixed news blogs --weights 2,1
  markovtext models prune`,
	}

	cmd.AddCommand(
		newModelsListCmd(a),
		newModelsRemoveCmd(a),
		newModelsExportCmd(a),
		newModelsImportCmd(a),
		newModelsCombineCmd(a),
		newModelsPruneCmd(a),
	)
	return cmd
}

func newModelsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			infos, err := s.GetModelInfos(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models found")
				return nil
			}

			names := make([]string, 0, len(infos))
			for name := range infos {
				names = append(names, name)
			}
			slices.Sort(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE SIZE\tWELL FORMED\tSOURCE RETAINED")
			for _, name := range names {
				info := infos[name]
				fmt.Fprintf(w, "%s\t%d\t%t\t%t\n", info.Name, info.StateSize, info.WellFormed, info.SourceRetained)
			}
			return w.Flush()
		},
	}
}

func newModelsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := s.GetModelInfo(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("finding model '%s': %w", args[0], err)
			}
			if err = s.RemoveModel(cmd.Context(), info); err != nil {
				return fmt.Errorf("removing model '%s': %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed model %s\n", info.Name)
			return nil
		},
	}
}

func newModelsExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Export a stored model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			text, err := s.LoadText(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading model '%s': %w", args[0], err)
			}
			text.SetLogger(a.logger)

			var buf bytes.Buffer
			if err = text.Export(&buf); err != nil {
				return fmt.Errorf("exporting model '%s': %w", args[0], err)
			}
			if output == "" || output == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err = atomic.WriteFile(output, &buf); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of standard output")
	return cmd
}

func newModelsImportCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a model exported as JSON",
		Long: `Import a model exported as JSON. The model is named after the file
unless --name is given; "-" reads standard input and requires --name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				if args[0] == "-" {
					return fmt.Errorf("--name is required when importing from standard input")
				}
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			var text *markov.Text
			var err error
			if args[0] == "-" {
				text, err = markov.ImportText(cmd.InOrStdin())
			} else {
				var file *os.File
				if file, err = os.Open(args[0]); err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				text, err = markov.ImportText(file)
				_ = file.Close()
			}
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}

			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := s.SaveText(cmd.Context(), name, text)
			if err != nil {
				return fmt.Errorf("saving model '%s': %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported model %s (state size %d)\n", info.Name, info.StateSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name of the imported model")
	return cmd
}

func newModelsCombineCmd(a *app) *cobra.Command {
	var weights []string

	cmd := &cobra.Command{
		Use:   "combine NAME SOURCE...",
		Short: "Combine stored models into a new one",
		Long: `Combine stored models into a new one. Transition counts of every source
are multiplied by its weight and summed; all sources must share a state size.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, sources := args[0], args[1:]

			var parsed []int
			if len(weights) > 0 {
				if len(weights) != len(sources) {
					return fmt.Errorf("got %d weights for %d models", len(weights), len(sources))
				}
				parsed = make([]int, len(weights))
				for i, w := range weights {
					n, err := strconv.Atoi(w)
					if err != nil {
						return fmt.Errorf("invalid weight %q: %w", w, err)
					}
					parsed[i] = n
				}
			}

			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			texts := make([]*markov.Text, len(sources))
			for i, source := range sources {
				if texts[i], err = s.LoadText(cmd.Context(), source); err != nil {
					return fmt.Errorf("loading model '%s': %w", source, err)
				}
			}

			combined, err := markov.CombineTexts(texts, parsed)
			if err != nil {
				return fmt.Errorf("combining models: %w", err)
			}
			info, err := s.SaveText(cmd.Context(), name, combined)
			if err != nil {
				return fmt.Errorf("saving model '%s': %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved model %s (state size %d, %d states)\n", info.Name, info.StateSize, combined.Chain().Size())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&weights, "weights", nil, "Comma separated weight of every source model")
	return cmd
}

func newModelsPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove vocabulary and prefixes no model uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := s.PruneOrphans(cmd.Context())
			if err != nil {
				return fmt.Errorf("pruning: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tokens and %d prefixes\n", result.TokensRemoved, result.PrefixesRemoved)
			return nil
		},
	}
}
