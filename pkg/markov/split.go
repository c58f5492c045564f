package markov

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// sentenceEndRegex finds candidate sentence boundaries: a word ending in
	// sentence punctuation, any closing quotes or brackets, then whitespace.
	sentenceEndRegex = regexp.MustCompile(
		`([\p{L}\p{Mn}\p{Nd}\p{Pc}.'’&\])]+[.?!])` +
			`([‘’“”'"\)\]]*)` +
			`([\s\v\x{85}\p{Z}]+)`,
	)
	wordSplitRegex    = regexp.MustCompile(`[\s\v\x{85}\p{Z}]+`)
	lineSplitRegex    = regexp.MustCompile(`\s*\n\s*`)
	notUppercaseASCII = regexp.MustCompile(`[^A-Z]`)
)

// abbreviationExceptions are multi-part abbreviations that never end a
// sentence, matched exactly.
var abbreviationExceptions = map[string]struct{}{
	"U.S.":   {},
	"U.N.":   {},
	"E.U.":   {},
	"F.B.I.": {},
	"C.I.A.": {},
}

var lowercaseAbbreviations = toSet("etc|v|vs|viz|al|pct")

// cappedAbbreviations holds states, titles, street types and months. The
// entries are lowercase; lookups fold the clipped word first.
var cappedAbbreviations = toSet(strings.Join([]string{
	// US states
	"ala|ariz|ark|calif|colo|conn|del|fla|ga|ill|ind|kan|ky|la|md|mass|mich|minn|miss|mo|mont|neb|nev|okla|ore|pa|tenn|vt|va|wash|wis|wyo",
	// Titles
	"mr|ms|mrs|msr|dr|gov|pres|sen|sens|rep|reps|prof|gen|messrs|col|sr|jf|sgt|mgr|fr|rev|jr|snr|atty|supt",
	"ave|blvd|st|rd|hwy",
	"jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec",
}, "|"))

func toSet(joined string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings.Split(joined, "|") {
		set[s] = struct{}{}
	}
	return set
}

// SplitIntoSentences splits text into sentences. A boundary is placed after a
// word that ends in '.', '?' or '!' (plus any trailing quotes or brackets)
// when the following whitespace is not continued by a lowercase letter or a
// dash, and the word itself is judged to end a sentence rather than being an
// abbreviation. Returned sentences are trimmed of surrounding whitespace. A
// blank tail after the last boundary is dropped, but an empty text yields a
// single empty sentence.
func SplitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for _, m := range sentenceEndRegex.FindAllStringSubmatchIndex(text, -1) {
		// m[2:4] is the word, m[4:6] the closing marks, m[6:8] the whitespace.
		if !continuesSentence(text, m[6], m[7]) {
			continue
		}
		if !isSentenceEnder(text[m[2]:m[3]]) {
			continue
		}
		end := m[5]
		sentences = append(sentences, strings.TrimSpace(text[start:end]))
		start = end
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" || len(sentences) == 0 {
		sentences = append(sentences, rest)
	}
	return sentences
}

// continuesSentence reports whether the whitespace run text[wsStart:wsEnd]
// satisfies "whitespace not followed by a lowercase letter or dash". With a
// run of two or more runes a backtracking matcher can always stop one rune
// early, so only single-rune runs look at the next character.
func continuesSentence(text string, wsStart, wsEnd int) bool {
	if utf8.RuneCountInString(text[wsStart:wsEnd]) > 1 || wsEnd >= len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[wsEnd:])
	switch {
	case next >= 'a' && next <= 'z':
		return false
	case next == '-' || next == '–' || next == '—':
		return false
	}
	return true
}

// SplitIntoWords splits a sentence on runs of whitespace. Empty tokens are
// not filtered, so callers should drop blank sentences first.
func SplitIntoWords(sentence string) []string {
	return wordSplitRegex.Split(sentence, -1)
}

// SplitIntoLines treats every line of text as its own sentence. It can be
// passed to WithSentenceSplitter for corpora such as headlines or lyrics.
func SplitIntoLines(text string) []string {
	return lineSplitRegex.Split(strings.TrimSpace(text), -1)
}

func isSentenceEnder(word string) bool {
	if _, ok := abbreviationExceptions[word]; ok {
		return false
	}

	last := word[len(word)-1]
	if last == '?' || last == '!' {
		return true
	}

	// Two or more capitals reads as an acronym, which may end a sentence.
	if len(notUppercaseASCII.ReplaceAllString(word, "")) > 1 {
		return true
	}

	return last == '.' && !isAbbreviation(word)
}

func isAbbreviation(word string) bool {
	clipped := word[:len(word)-1]
	if clipped[0] >= 'A' && clipped[0] <= 'Z' {
		_, ok := cappedAbbreviations[strings.ToLower(clipped)]
		return ok
	}
	_, ok := lowercaseAbbreviations[clipped]
	return ok
}
