package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date for markovtext.`,
		// Overrides the root hook so no configuration file is read or created.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "markovtext %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", BuildDate)
		},
	}
}
