package templating

import "github.com/CTAG07/markovtext/pkg/markov"

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// MaxParagraphs caps the count requested from markovParagraphs.
	MaxParagraphs int

	// MaxSentences caps the sentences per paragraph requested from markovParagraphs.
	MaxSentences int

	// Sentence holds the generation parameters used by every markov function.
	Sentence markov.SentenceOptions
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		MaxParagraphs: 20,
		MaxSentences:  15,
		Sentence:      markov.DefaultSentenceOptions(),
	}
}
