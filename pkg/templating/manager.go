package templating

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/CTAG07/markovtext/pkg/markov"
)

const (
	templateSuffix = ".tmpl.txt"
	partialSuffix  = ".part.txt"
)

// ModelLoader resolves a model name to a trained text model.
type ModelLoader interface {
	LoadText(ctx context.Context, name string) (*markov.Text, error)
}

// TemplateManager is the central controller for the templating engine.
// It manages the template set, configuration, function map, and the models
// the markov functions draw from. Methods are safe for concurrent use;
// executions are serialized because models share one random source.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	loader         ModelLoader
	models         map[string]*markov.Text
	random         markov.RandomSource
	templates      *template.Template
	cleanTemplates *template.Template
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	mu             sync.Mutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// The loader may be nil when models are only registered with AddModel. An
// empty templateDir skips loading template files, leaving only string
// execution. It performs an initial Refresh to load all templates.
func NewTemplateManager(logger *slog.Logger, loader ModelLoader, config TemplateConfig, templateDir string) (*TemplateManager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tm := &TemplateManager{
		logger:      logger,
		loader:      loader,
		models:      make(map[string]*markov.Text),
		random:      markov.NewRandom(),
		templateDir: templateDir,
		config:      &config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Debug("Template manager initialized", "template_dir", templateDir)
	return tm, nil
}

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Content Generation (from funcs_content.go)
		"markovSentence":          tm.markovSentence,
		"markovShortSentence":     tm.markovShortSentence,
		"markovSentenceWithStart": tm.markovSentenceWithStart,
		"markovParagraphs":        tm.markovParagraphs,

		// Logic & Control (from funcs_logic.go)
		"repeat":       repeat,
		"list":         list,
		"randomChoice": tm.randomChoice,
		"randomInt":    tm.randomInt,

		// Simple (from funcs_simple.go)
		"add":   add,
		"sub":   sub,
		"div":   div,
		"mult":  mult,
		"max":   maxInt,
		"min":   minInt,
		"mod":   mod,
		"inc":   inc,
		"dec":   dec,
		"isSet": isSet,
	}
}

// SetConfig applies a new configuration to the TemplateManager.
func (tm *TemplateManager) SetConfig(config TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = &config
}

// SetRandom replaces the random source of the helper functions and of every
// model used from now on. A seeded source makes rendering reproducible.
func (tm *TemplateManager) SetRandom(source markov.RandomSource) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if source == nil {
		source = markov.NewRandom()
	}
	tm.random = source
	for _, text := range tm.models {
		text.SetRandom(source)
	}
}

// AddModel registers a model under a name, taking precedence over the loader.
func (tm *TemplateManager) AddModel(name string, text *markov.Text) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	text.SetRandom(tm.random)
	tm.models[name] = text
}

// Refresh reloads all templates from the template directory. Models already
// loaded stay cached.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	parsedFiles := template.New("").Funcs(tm.funcMap)
	var names []string
	if tm.templateDir != "" {
		filePattern := filepath.Join(tm.templateDir, "*"+templateSuffix)
		matches, err := filepath.Glob(filePattern)
		if err != nil {
			return fmt.Errorf("invalid template pattern: %w", err)
		}
		if len(matches) > 0 {
			if parsedFiles, err = parsedFiles.ParseFiles(matches...); err != nil {
				tm.logger.Error("failed to parse template files", "error", err)
				return err
			}
		}
		for _, match := range matches {
			names = append(names, filepath.Base(match))
		}

		partials, err := filepath.Glob(filepath.Join(tm.templateDir, "*"+partialSuffix))
		if err != nil {
			return fmt.Errorf("invalid partial pattern: %w", err)
		}
		if len(partials) > 0 {
			if parsedFiles, err = parsedFiles.ParseFiles(partials...); err != nil {
				tm.logger.Error("failed to parse partial files", "error", err)
				return err
			}
		}

		if len(names) == 0 {
			tm.logger.Warn("No template files found matching pattern", "pattern", filePattern)
		}
	}

	// Create a clean clone for string executions after all parsing is complete.
	cleanTemplates, err := parsedFiles.Clone()
	if err != nil {
		tm.logger.Error("failed to create a clean clone of templates", "error", err)
		return err
	}

	tm.templates = parsedFiles
	tm.cleanTemplates = cleanTemplates
	tm.templateNames = names
	tm.logger.Debug("Loaded template and partial files", "count", len(parsedFiles.Templates()))
	return nil
}

// Execute renders a specific template by name, writing the output to the provided io.Writer.
// The `data` argument is passed to the template and can be used to provide context or
// dynamic values.
func (tm *TemplateManager) Execute(w io.Writer, name string, data any) error {
	if name == "" {
		return nil
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.templates.ExecuteTemplate(w, name, data)
}

// ExecuteTemplateString parses and executes a raw template string using the
// manager's function map. Loaded partials are available to it.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data any) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Clone the clean, unexecuted template set so the string can be parsed into it.
	tempSet, err := tm.cleanTemplates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone clean templates for string execution: %w", err)
	}

	t, err := tempSet.New("string").Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	return t.Execute(w, data)
}

// GetRandomTemplate returns the name of a randomly selected full template,
// or "" when none is loaded.
func (tm *TemplateManager) GetRandomTemplate() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if len(tm.templateNames) == 0 {
		return ""
	}
	return tm.templateNames[tm.random.IntN(len(tm.templateNames))]
}

// GetTemplateNames returns the names of the loaded full templates.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return append([]string(nil), tm.templateNames...)
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return *tm.config
}

// model returns the named model, loading it on first use. Callers hold tm.mu.
func (tm *TemplateManager) model(name string) (*markov.Text, error) {
	if text, ok := tm.models[name]; ok {
		return text, nil
	}
	if tm.loader == nil {
		return nil, fmt.Errorf("model '%s' is not registered", name)
	}
	text, err := tm.loader.LoadText(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("loading model '%s': %w", name, err)
	}
	text.SetRandom(tm.random)
	text.SetLogger(tm.logger)
	tm.models[name] = text
	tm.logger.Debug("Template model loaded", "model_name", name)
	return text, nil
}
