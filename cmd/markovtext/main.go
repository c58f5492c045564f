package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/CTAG07/markovtext/pkg/store"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries the state shared by every command once the root command has
// loaded the configuration.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	config *Config
	logger *slog.Logger
}

// openStore opens the configured database, prepares its schema and returns a
// Store together with a function releasing both.
func (a *app) openStore() (*store.Store, func(), error) {
	db, err := initDB(a.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	s, err := store.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("error creating model store: %w", err)
	}
	s.SetLogger(a.logger)

	return s, func() {
		s.Close()
		closeDB(a.logger, db)
	}, nil
}

func closeDB(logger *slog.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
}

// newRootCmd builds the command tree. Diagnostics are logged to stderr;
// generated text and listings go to the command's output.
func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "markovtext",
		Short: "Train Markov chain text models and generate sentences",
		Long: `markovtext builds word-level Markov chain models from plain text,
stores them in a SQLite database and generates new sentences that do not
simply repeat the source.

Examples:
  markovtext train corpus.txt --name news
  markovtext generate --model news -n 5
  markovtext models list
  markovtext serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("db") {
				config.Database.Path = a.dbPath
			}
			if cmd.Flags().Changed("log-level") {
				config.Logging.Level = a.logLevel
			}
			if err = config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			level, _ := parseLogLevel(config.Logging.Level)
			a.config = config
			a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "./markovtext.json", "Path to the JSON config file")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the SQLite database (overrides the config)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the config)")

	cmd.AddCommand(
		newTrainCmd(a),
		newGenerateCmd(a),
		newModelsCmd(a),
		newStatsCmd(a),
		newRenderCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
