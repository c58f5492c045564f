package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/CTAG07/markovtext/pkg/markov"
	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
)

// DatabaseConfig holds the location of the model database.
type DatabaseConfig struct {
	Path string `json:"database_path"`
}

// LoggingConfig holds settings for the stderr logger.
type LoggingConfig struct {
	Level string `json:"log_level"`
}

// TrainingConfig holds the defaults used by the train command.
type TrainingConfig struct {
	StateSize      int    `json:"state_size"`
	RetainOriginal bool   `json:"retain_original"`
	WellFormed     bool   `json:"well_formed"`
	RejectPattern  string `json:"reject_pattern"`
}

// GenerationConfig holds the defaults used by the generate command.
type GenerationConfig struct {
	Tries           int     `json:"tries"`
	MaxOverlapRatio float64 `json:"max_overlap_ratio"`
	MaxOverlapWords int     `json:"max_overlap_words"`
	TestOutput      bool    `json:"test_output"`
	MaxWords        int     `json:"max_words"`
	MinChars        int     `json:"min_chars"`
}

// TemplateConfig holds the settings of the render command.
type TemplateConfig struct {
	Dir           string `json:"template_dir"`
	MaxParagraphs int    `json:"max_paragraphs"`
	MaxSentences  int    `json:"max_sentences"`
}

// ServerConfig holds the settings of the serve command.
type ServerConfig struct {
	Addr   string `json:"server_addr"`
	APIKey string `json:"api_key"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Database   *DatabaseConfig   `json:"database_config"`
	Logging    *LoggingConfig    `json:"logging_config"`
	Training   *TrainingConfig   `json:"training_config"`
	Generation *GenerationConfig `json:"generation_config"`
	Templates  *TemplateConfig   `json:"template_config"`
	Server     *ServerConfig     `json:"server_config"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	sentence := markov.DefaultSentenceOptions()
	return &Config{
		Database: &DatabaseConfig{
			Path: "./markovtext.db",
		},
		Logging: &LoggingConfig{
			Level: "info",
		},
		Training: &TrainingConfig{
			StateSize:      2,
			RetainOriginal: true,
			WellFormed:     true,
			RejectPattern:  markov.DefaultRejectPattern,
		},
		Generation: &GenerationConfig{
			Tries:           sentence.Tries,
			MaxOverlapRatio: sentence.MaxOverlapRatio,
			MaxOverlapWords: sentence.MaxOverlapWords,
			TestOutput:      sentence.TestOutput,
			MaxWords:        sentence.MaxWords,
			MinChars:        sentence.MinChars,
		},
		Templates: &TemplateConfig{
			Dir:           "./templates",
			MaxParagraphs: 20,
			MaxSentences:  15,
		},
		Server: &ServerConfig{
			Addr: "127.0.0.1:7280",
		},
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values. Variables
// from a .env file in the working directory and the environment override
// the file, and the result is validated.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		var data []byte
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			// The defaults are still usable without a file on disk.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	config.applyEnv()

	return config, config.Validate()
}

// applyEnv overrides file settings with MARKOVTEXT_* environment variables.
func (c *Config) applyEnv() {
	c.Database.Path = getEnv("MARKOVTEXT_DATABASE_PATH", c.Database.Path)
	c.Logging.Level = getEnv("MARKOVTEXT_LOG_LEVEL", c.Logging.Level)
	c.Training.StateSize = getEnvInt("MARKOVTEXT_STATE_SIZE", c.Training.StateSize)
	c.Generation.Tries = getEnvInt("MARKOVTEXT_TRIES", c.Generation.Tries)
	c.Templates.Dir = getEnv("MARKOVTEXT_TEMPLATE_DIR", c.Templates.Dir)
	c.Server.Addr = getEnv("MARKOVTEXT_SERVER_ADDR", c.Server.Addr)
	c.Server.APIKey = getEnv("MARKOVTEXT_API_KEY", c.Server.APIKey)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Database == nil || c.Logging == nil || c.Training == nil || c.Generation == nil || c.Templates == nil || c.Server == nil {
		return fmt.Errorf("config sections must not be null")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if _, ok := parseLogLevel(c.Logging.Level); !ok {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Training.StateSize < 1 {
		return fmt.Errorf("state_size must be positive, got %d", c.Training.StateSize)
	}
	if c.Generation.Tries < 1 {
		return fmt.Errorf("tries must be positive, got %d", c.Generation.Tries)
	}
	if c.Generation.MaxOverlapRatio < 0 || c.Generation.MaxOverlapRatio > 1 {
		return fmt.Errorf("max_overlap_ratio must be 0-1, got %f", c.Generation.MaxOverlapRatio)
	}
	if c.Generation.MaxOverlapWords < 0 || c.Generation.MaxWords < 0 || c.Generation.MinChars < 0 {
		return fmt.Errorf("generation limits must not be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server_addr must not be empty")
	}
	if c.Templates.MaxParagraphs < 1 || c.Templates.MaxSentences < 1 {
		return fmt.Errorf("max_paragraphs and max_sentences must be positive")
	}
	return nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
