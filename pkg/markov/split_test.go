package markov

import (
	"reflect"
	"testing"
)

func TestSplitIntoSentences(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two sentences",
			input: "He left. She stayed.",
			want:  []string{"He left.", "She stayed."},
		},
		{
			name:  "question and exclamation",
			input: "Is it? It is! Fine.",
			want:  []string{"Is it?", "It is!", "Fine."},
		},
		{
			name:  "title abbreviation",
			input: "Mr. Smith went home. He slept.",
			want:  []string{"Mr. Smith went home.", "He slept."},
		},
		{
			name:  "month abbreviation",
			input: "It was Jan. Snow fell.",
			want:  []string{"It was Jan. Snow fell."},
		},
		{
			name:  "lowercase abbreviation",
			input: "Apples, pears, etc. Were sold.",
			want:  []string{"Apples, pears, etc. Were sold."},
		},
		{
			name:  "exception list",
			input: "The F.B.I. Arrived late. Then left.",
			want:  []string{"The F.B.I. Arrived late.", "Then left."},
		},
		{
			name:  "exception before capital",
			input: "I work for the F.B.I. Sometimes.",
			want:  []string{"I work for the F.B.I. Sometimes."},
		},
		{
			name:  "acronym ends sentence",
			input: "I work at NASA. It is fun.",
			want:  []string{"I work at NASA.", "It is fun."},
		},
		{
			name:  "lowercase continuation",
			input: "Wait... it is still going. Yes.",
			want:  []string{"Wait... it is still going.", "Yes."},
		},
		{
			name:  "dash continuation",
			input: "It ended. - or did it? Maybe.",
			want:  []string{"It ended. - or did it?", "Maybe."},
		},
		{
			name:  "double space before lowercase",
			input: "Hello.  world goes on",
			want:  []string{"Hello.", "world goes on"},
		},
		{
			name:  "closing quote stays with sentence",
			input: `He said "Stop." Then he left.`,
			want:  []string{`He said "Stop."`, "Then he left."},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  One.\n\nTwo.  ",
			want:  []string{"One.", "Two."},
		},
		{
			name:  "no terminal punctuation",
			input: "no punctuation here",
			want:  []string{"no punctuation here"},
		},
		{
			name:  "empty",
			input: "",
			want:  []string{""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitIntoSentences(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitIntoSentences(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSplitIntoWords(t *testing.T) {
	got := SplitIntoWords("one  two\tthree four")
	want := []string{"one", "two", "three", "four"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitIntoWords() = %q, want %q", got, want)
	}
}

func TestSplitIntoLines(t *testing.T) {
	got := SplitIntoLines("\n first line \n\n second line\n")
	want := []string{"first line", "second line"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitIntoLines() = %q, want %q", got, want)
	}
}

func TestIsSentenceEnder(t *testing.T) {
	testCases := []struct {
		word string
		want bool
	}{
		{"end.", true},
		{"why?", true},
		{"U.S.", false},
		{"Dr.", false},
		{"Calif.", false},
		{"vs.", false},
		{"USA.", true},
		{"Mississippi.", true},
	}
	for _, tc := range testCases {
		if got := isSentenceEnder(tc.word); got != tc.want {
			t.Errorf("isSentenceEnder(%q) = %v, want %v", tc.word, got, tc.want)
		}
	}
}
