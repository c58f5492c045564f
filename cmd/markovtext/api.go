package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/CTAG07/markovtext/pkg/markov"
	"github.com/CTAG07/markovtext/pkg/store"
	"github.com/CTAG07/markovtext/pkg/templating"
)

const (
	maxBodyBytes  = 32 << 20
	maxCountParam = 100
	maxTriesParam = 100
)

// ModelAPI holds the dependencies for the model API handlers.
type ModelAPI struct {
	store  *store.Store
	config *Config
	logger *slog.Logger

	mu       sync.RWMutex
	texts    map[string]*markov.Text
	versions map[string]uint64 // bumped whenever a cached model goes stale
}

// GenerateResponse is the JSON body returned by the generate endpoint.
type GenerateResponse struct {
	Model     string   `json:"model"`
	Sentences []string `json:"sentences"`
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewModelAPI creates a new instance of the ModelAPI.
func NewModelAPI(s *store.Store, config *Config, logger *slog.Logger) *ModelAPI {
	return &ModelAPI{
		store:  s,
		config: config,
		logger: logger,
		texts:    make(map[string]*markov.Text),
		versions: make(map[string]uint64),
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (m *ModelAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListModels)
	mux.HandleFunc("/api/models/", m.handleModelByName)
	mux.HandleFunc("/api/prune", m.handlePrune)
	mux.HandleFunc("/api/stats", m.handleStats)
	mux.HandleFunc("/api/render", m.handleRender)
	mux.HandleFunc("/api/version", m.handleVersion)
}

// handleListModels lists the stored models sorted by name.
func (m *ModelAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	models, err := m.store.GetModelInfos(r.Context())
	if err != nil {
		m.logger.Error("Failed to get model infos", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
		return
	}
	// Convert map to slice for consistent JSON output
	modelList := make([]store.ModelInfo, 0, len(models))
	for _, model := range models {
		modelList = append(modelList, model)
	}
	slices.SortFunc(modelList, func(x, y store.ModelInfo) int { return strings.Compare(x.Name, y.Name) })
	respondWithJSON(w, http.StatusOK, modelList)
}

// handleModelByName routes actions for a specific model, e.g., train, generate, export, delete.
func (m *ModelAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	modelName, action, _ := strings.Cut(path, "/")
	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	switch action {
	case "":
		m.handleModel(w, r, modelName)
	case "train":
		if allowMethod(w, r, http.MethodPost) {
			m.handleTrain(w, r, modelName)
		}
	case "import":
		if allowMethod(w, r, http.MethodPost) {
			m.handleImport(w, r, modelName)
		}
	case "generate":
		if allowMethod(w, r, http.MethodGet) {
			m.handleGenerate(w, r, modelName)
		}
	case "export":
		if allowMethod(w, r, http.MethodGet) {
			m.handleExport(w, r, modelName)
		}
	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

func (m *ModelAPI) handleModel(w http.ResponseWriter, r *http.Request, modelName string) {
	if !allowMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	model, ok := m.modelInfo(w, r, modelName)
	if !ok {
		return
	}
	if r.Method == http.MethodGet {
		respondWithJSON(w, http.StatusOK, model)
		return
	}

	if err := m.store.RemoveModel(r.Context(), model); err != nil {
		m.logger.Error("Failed to remove model", "model_name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
		return
	}
	m.forget(modelName)
	w.WriteHeader(http.StatusNoContent)
}

// handleTrain builds a model from the raw request body. Query parameters
// override the configured training defaults.
func (m *ModelAPI) handleTrain(w http.ResponseWriter, r *http.Request, modelName string) {
	cfg := m.config.Training
	q := queryParser{values: r.URL.Query()}
	opts := []markov.BuildOption{
		markov.WithStateSize(q.intParam("state_size", cfg.StateSize)),
		markov.WithRetainOriginal(q.boolParam("retain_original", cfg.RetainOriginal)),
		markov.WithWellFormed(q.boolParam("well_formed", cfg.WellFormed)),
		markov.WithRejectPattern(q.stringParam("reject_pattern", cfg.RejectPattern)),
		markov.WithLogger(m.logger),
	}
	if q.boolParam("lines", false) {
		opts = append(opts, markov.WithSentenceSplitter(markov.SplitIntoLines))
	}
	if q.err != nil {
		respondWithError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}

	text, err := markov.NewText(body.String(), opts...)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Training failed: %v", err))
		return
	}
	m.saveModel(w, r, modelName, text)
}

// handleImport saves a model posted in its exported JSON form.
func (m *ModelAPI) handleImport(w http.ResponseWriter, r *http.Request, modelName string) {
	text, err := markov.ImportText(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	m.saveModel(w, r, modelName, text)
}

func (m *ModelAPI) saveModel(w http.ResponseWriter, r *http.Request, modelName string, text *markov.Text) {
	model, err := m.store.SaveText(r.Context(), modelName, text)
	if err != nil {
		if errors.Is(err, store.ErrEmptyModel) {
			respondWithError(w, http.StatusUnprocessableEntity, "The input produced an empty model")
			return
		}
		m.logger.Error("Failed to save model", "model_name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save model: %v", err))
		return
	}
	m.forget(modelName)
	respondWithJSON(w, http.StatusCreated, model)
}

// handleGenerate generates sentences. Query parameters select the kind of
// sentence and override the configured generation defaults.
func (m *ModelAPI) handleGenerate(w http.ResponseWriter, r *http.Request, modelName string) {
	q := queryParser{values: r.URL.Query()}
	options := sentenceOptions(m.config.Generation)
	options.Tries = q.intParam("tries", options.Tries)
	options.MaxOverlapRatio = q.floatParam("max_overlap_ratio", options.MaxOverlapRatio)
	options.MaxOverlapWords = q.intParam("max_overlap_words", options.MaxOverlapWords)
	options.TestOutput = q.boolParam("test_output", options.TestOutput)
	options.MaxWords = q.intParam("max_words", options.MaxWords)
	options.MinChars = q.intParam("min_chars", options.MinChars)
	count := q.intParam("count", 1)
	maxChars := q.intParam("max_chars", 0)
	start := q.stringParam("start", "")
	strict := q.boolParam("strict", true)
	seed := q.uintParam("seed", 0)
	if q.err != nil {
		respondWithError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	if count < 1 || count > maxCountParam {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxCountParam))
		return
	}
	if q.has("tries") && (options.Tries < 1 || options.Tries > maxTriesParam) {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("tries must be between 1 and %d", maxTriesParam))
		return
	}

	var text *markov.Text
	var err error
	if q.has("seed") {
		// Seeded requests get a private copy so the shared model keeps its source.
		text, err = m.store.LoadText(r.Context(), modelName)
		if err == nil {
			text.SetLogger(m.logger)
			text.SetRandom(markov.NewSeededRandom(seed))
		}
	} else {
		text, err = m.text(r, modelName)
	}
	if err != nil {
		m.respondLoadError(w, modelName, err)
		return
	}

	sentenceOpt := markov.WithSentenceOptions(options)
	response := GenerateResponse{Model: modelName, Sentences: []string{}}
	for i := 0; i < count; i++ {
		var sentence string
		var ok bool
		switch {
		case start != "":
			sentence, ok, err = text.MakeSentenceWithStart(start, strict, sentenceOpt)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		case maxChars > 0:
			sentence, ok = text.MakeShortSentence(maxChars, sentenceOpt)
		default:
			sentence, ok = text.MakeSentence(sentenceOpt)
		}
		if ok {
			response.Sentences = append(response.Sentences, sentence)
		}
	}

	if len(response.Sentences) == 0 {
		respondWithError(w, http.StatusUnprocessableEntity, errNoSentence.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, response)
}

func (m *ModelAPI) handleExport(w http.ResponseWriter, r *http.Request, modelName string) {
	text, err := m.text(r, modelName)
	if err != nil {
		m.respondLoadError(w, modelName, err)
		return
	}

	var buf bytes.Buffer
	if err = text.Export(&buf); err != nil {
		m.logger.Error("Failed to export model", "model_name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", modelName))
	_, _ = buf.WriteTo(w)
}

// handlePrune removes vocabulary and prefixes no model uses.
func (m *ModelAPI) handlePrune(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	result, err := m.store.PruneOrphans(r.Context())
	if err != nil {
		m.logger.Error("Failed to prune vocabulary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Prune failed: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (m *ModelAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := m.store.GetStats(r.Context())
	if err != nil {
		m.logger.Error("Failed to get stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// handleRender renders the template text in the request body, or the named
// template file given by the "template" query parameter.
func (m *ModelAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	q := queryParser{values: r.URL.Query()}
	name := q.stringParam("template", "")
	seed := q.uintParam("seed", 0)
	if q.err != nil {
		respondWithError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	tm, err := templating.NewTemplateManager(m.logger, m.store, templateConfig(m.config), m.config.Templates.Dir)
	if err != nil {
		m.logger.Error("Failed to load templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load templates: %v", err))
		return
	}
	if q.has("seed") {
		tm.SetRandom(markov.NewSeededRandom(seed))
	}

	var out bytes.Buffer
	if name != "" {
		err = tm.Execute(&out, name, nil)
	} else {
		var body bytes.Buffer
		if _, err = body.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
			return
		}
		err = tm.ExecuteTemplateString(&out, body.String(), nil)
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Render failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = out.WriteTo(w)
}

// handleVersion returns the application's build information.
func (m *ModelAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

// modelInfo looks a model up and writes a 404 or 500 response when that fails.
func (m *ModelAPI) modelInfo(w http.ResponseWriter, r *http.Request, modelName string) (store.ModelInfo, bool) {
	model, err := m.store.GetModelInfo(r.Context(), modelName)
	if err != nil {
		m.respondLoadError(w, modelName, err)
		return store.ModelInfo{}, false
	}
	return model, true
}

func (m *ModelAPI) respondLoadError(w http.ResponseWriter, modelName string, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		respondWithError(w, http.StatusNotFound, "Model not found")
		return
	}
	m.logger.Error("Failed to load model", "model_name", modelName, "error", err)
	respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
}

// text returns the cached model, loading it from the store on first use.
func (m *ModelAPI) text(r *http.Request, modelName string) (*markov.Text, error) {
	text, version, ok := m.cached(modelName)
	if ok {
		return text, nil
	}

	text, err := m.store.LoadText(r.Context(), modelName)
	if err != nil {
		return nil, err
	}
	text.SetLogger(m.logger)
	m.remember(modelName, version, text)
	return text, nil
}

// cached returns the cached model, or the version a load started now must
// present to remember.
func (m *ModelAPI) cached(modelName string) (*markov.Text, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.texts[modelName]
	return text, m.versions[modelName], ok
}

// remember caches a loaded model unless it was saved or removed since the
// load began.
func (m *ModelAPI) remember(modelName string, version uint64, text *markov.Text) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[modelName] != version {
		return
	}
	m.texts[modelName] = text
}

func (m *ModelAPI) forget(modelName string) {
	m.mu.Lock()
	delete(m.texts, modelName)
	m.versions[modelName]++
	m.mu.Unlock()
}

// allowMethod writes a 405 response unless the request uses one of methods.
func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// queryParser reads typed query parameters, keeping the first parse error.
type queryParser struct {
	values map[string][]string
	err    error
}

func (q *queryParser) has(key string) bool {
	_, ok := q.values[key]
	return ok
}

func (q *queryParser) stringParam(key, def string) string {
	if v, ok := q.values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return def
}

func (q *queryParser) parse(key string, parse func(string) error) {
	v := q.stringParam(key, "")
	if v == "" || q.err != nil {
		return
	}
	if err := parse(v); err != nil {
		q.err = fmt.Errorf("invalid %s parameter %q", key, v)
	}
}

func (q *queryParser) intParam(key string, def int) int {
	q.parse(key, func(v string) (err error) {
		def, err = strconv.Atoi(v)
		return err
	})
	return def
}

func (q *queryParser) uintParam(key string, def uint64) uint64 {
	q.parse(key, func(v string) (err error) {
		def, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	return def
}

func (q *queryParser) floatParam(key string, def float64) float64 {
	q.parse(key, func(v string) (err error) {
		def, err = strconv.ParseFloat(v, 64)
		return err
	})
	return def
}

func (q *queryParser) boolParam(key string, def bool) bool {
	q.parse(key, func(v string) (err error) {
		def, err = strconv.ParseBool(v)
		return err
	})
	return def
}
