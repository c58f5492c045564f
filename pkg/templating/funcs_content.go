package templating

import (
	"strings"

	"github.com/CTAG07/markovtext/pkg/markov"
)

// markovSentence generates a sentence from a named model. A model that gives
// up yields an empty string.
func (tm *TemplateManager) markovSentence(modelName string) (string, error) {
	text, err := tm.model(modelName)
	if err != nil {
		return "", err
	}
	sentence, ok := text.MakeSentence(markov.WithSentenceOptions(tm.config.Sentence))
	if !ok {
		tm.logger.Debug("markovSentence: generation gave up", "model_name", modelName)
	}
	return sentence, nil
}

// markovShortSentence generates a sentence of at most maxChars characters.
func (tm *TemplateManager) markovShortSentence(modelName string, maxChars int) (string, error) {
	text, err := tm.model(modelName)
	if err != nil {
		return "", err
	}
	sentence, ok := text.MakeShortSentence(maxChars, markov.WithSentenceOptions(tm.config.Sentence))
	if !ok {
		tm.logger.Debug("markovShortSentence: generation gave up", "model_name", modelName, "max_chars", maxChars)
	}
	return sentence, nil
}

// markovSentenceWithStart generates a sentence opening with the given words,
// which may start any trained state.
func (tm *TemplateManager) markovSentenceWithStart(modelName, start string) (string, error) {
	text, err := tm.model(modelName)
	if err != nil {
		return "", err
	}
	sentence, ok, err := text.MakeSentenceWithStart(start, false, markov.WithSentenceOptions(tm.config.Sentence))
	if err != nil {
		return "", err
	}
	if !ok {
		tm.logger.Debug("markovSentenceWithStart: generation gave up", "model_name", modelName, "start", start)
	}
	return sentence, nil
}

// markovParagraphs generates count paragraphs of minSentences to maxSentences
// sentences each, separated by blank lines.
func (tm *TemplateManager) markovParagraphs(modelName string, count, minSentences, maxSentences int) (string, error) {
	count = minInt(count, tm.config.MaxParagraphs)
	maxSentences = minInt(maxSentences, tm.config.MaxSentences)
	minSentences = minInt(maxInt(minSentences, 1), maxSentences)
	if count <= 0 {
		return "", nil
	}

	var builder strings.Builder
	for i := 0; i < count; i++ {
		numSentences := tm.randomInt(minSentences, maxSentences+1)
		written := 0
		for j := 0; j < numSentences; j++ {
			sentence, err := tm.markovSentence(modelName)
			if err != nil {
				return "", err
			}
			if sentence == "" {
				continue
			}
			if written > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(sentence)
			written++
		}
		if i < count-1 {
			builder.WriteString("\n\n")
		}
	}
	return builder.String(), nil
}
