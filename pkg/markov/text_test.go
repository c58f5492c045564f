package markov

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		opts       []BuildOption
		wantEmpty  bool
		wantSource string
	}{
		{
			name:      "empty input",
			input:     "",
			wantEmpty: true,
		},
		{
			name:      "zero state size",
			input:     "This is a sentence.",
			opts:      []BuildOption{WithStateSize(0)},
			wantEmpty: true,
		},
		{
			name:       "single sentence",
			input:      "This is a sentence.",
			wantSource: "This is a sentence.",
		},
		{
			name:       "quoted sentence rejected",
			input:      `He said "hi" to me. She left the room.`,
			wantSource: "She left the room.",
		},
		{
			name:       "quoted sentence kept when not well formed",
			input:      `He said "hi" to me. She left the room.`,
			opts:       []BuildOption{WithWellFormed(false)},
			wantSource: `He said "hi" to me. She left the room.`,
		},
		{
			name:       "custom reject pattern",
			input:      "Cats are nice. Dogs are loud.",
			opts:       []BuildOption{WithRejectPattern("Dogs")},
			wantSource: "Cats are nice.",
		},
		{
			name:       "source not retained",
			input:      "This is a sentence.",
			opts:       []BuildOption{WithRetainOriginal(false)},
			wantSource: "",
		},
		{
			name:       "line splitter",
			input:      "first headline here\nsecond headline there",
			opts:       []BuildOption{WithSentenceSplitter(SplitIntoLines)},
			wantSource: "first headline here second headline there",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			text := mustText(t, tc.input, tc.opts...)
			if text.IsEmpty() != tc.wantEmpty {
				t.Fatalf("IsEmpty() = %v, want %v", text.IsEmpty(), tc.wantEmpty)
			}
			if tc.wantEmpty {
				return
			}
			if got := text.SourceText(); got != tc.wantSource {
				t.Errorf("SourceText() = %q, want %q", got, tc.wantSource)
			}
		})
	}
}

func TestNewTextInvalidRejectPattern(t *testing.T) {
	if _, err := NewText("Some text.", WithRejectPattern("(")); err == nil {
		t.Fatal("expected an error for an invalid reject pattern")
	}
}

func TestNewTextAllRejected(t *testing.T) {
	text := mustText(t, `"Quoted." (Bracketed.)`)
	if !text.IsEmpty() {
		t.Fatal("expected a model without states")
	}
	if _, ok := text.MakeSentence(); ok {
		t.Error("MakeSentence() succeeded on a model without states")
	}
}

func TestMakeSentenceRejectsCopies(t *testing.T) {
	text := mustText(t, "This is a sentence. This is a sample.")

	// Every walk reproduces a source sentence, so the overlap test fails.
	if sentence, ok := text.MakeSentence(); ok {
		t.Errorf("MakeSentence() = %q, want no sentence", sentence)
	}

	text.SetRandom(constantRandom(0))
	sentence, ok := text.MakeSentence(WithTestOutput(false))
	if !ok || sentence != "This is a sentence." {
		t.Errorf("MakeSentence(no test) = %q, %v; want %q", sentence, ok, "This is a sentence.")
	}
}

func TestMakeSentenceTries(t *testing.T) {
	text := mustText(t, "One two three.")
	rng := &countingRandom{}
	text.SetRandom(rng)

	if _, ok := text.MakeSentence(WithTries(7)); ok {
		t.Fatal("expected every candidate to be rejected")
	}
	// Three words plus the end draw per attempt.
	if want := 7 * 4; rng.calls != want {
		t.Errorf("IntN called %d times, want %d", rng.calls, want)
	}
}

func TestMakeSentenceOverlap(t *testing.T) {
	text := mustText(t, "The quick brown fox jumps. A slow red dog sleeps.", WithStateSize(1))

	testCases := []struct {
		name  string
		words []string
		ratio float64
		limit int
		want  bool
	}{
		{"copy of source", []string{"The", "quick", "brown", "fox", "jumps."}, 0.7, 15, false},
		{"case insensitive", []string{"the", "QUICK", "brown", "fox", "jumps."}, 0.7, 15, false},
		{"novel mix", []string{"The", "quick", "red", "dog", "sleeps."}, 0.7, 15, true},
		{"word limit tightens window", []string{"The", "quick", "red", "dog", "sleeps."}, 0.7, 2, false},
		{"zero window matches everything", []string{"A", "new", "thing."}, 0, 15, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := text.testSentenceOutput(tc.words, tc.ratio, tc.limit); got != tc.want {
				t.Errorf("testSentenceOutput(%q) = %v, want %v", tc.words, got, tc.want)
			}
		})
	}
}

func TestMakeSentenceMaxWords(t *testing.T) {
	text := mustText(t, "One two three.")
	if _, ok := text.MakeSentence(WithTestOutput(false), WithMaxWords(2)); ok {
		t.Error("expected a three word sentence to exceed MaxWords 2")
	}
	if got, ok := text.MakeSentence(WithTestOutput(false), WithMaxWords(3)); !ok || got != "One two three." {
		t.Errorf("MakeSentence(MaxWords 3) = %q, %v", got, ok)
	}
}

func TestMakeShortSentence(t *testing.T) {
	text := mustText(t, "One two three.")

	testCases := []struct {
		name     string
		maxChars int
		opts     []SentenceOption
		want     bool
	}{
		{"fits", 100, []SentenceOption{WithTestOutput(false)}, true},
		{"too long", 5, []SentenceOption{WithTestOutput(false)}, false},
		{"too short", 100, []SentenceOption{WithTestOutput(false), WithMinChars(20)}, false},
		{"exact bounds", 14, []SentenceOption{WithTestOutput(false), WithMinChars(14)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := text.MakeShortSentence(tc.maxChars, tc.opts...)
			if ok != tc.want {
				t.Fatalf("MakeShortSentence(%d) = %q, %v; want ok %v", tc.maxChars, got, ok, tc.want)
			}
			if ok && got != "One two three." {
				t.Errorf("MakeShortSentence(%d) = %q", tc.maxChars, got)
			}
		})
	}
}

func TestMakeSentenceWithStart(t *testing.T) {
	text := mustText(t, "This is a sentence. This is a sample. That is it.")
	text.SetRandom(constantRandom(0))
	noTest := WithTestOutput(false)

	testCases := []struct {
		name      string
		beginning string
		strict    bool
		want      []string
		wantErr   error
	}{
		{"full state", "This is", true, []string{"This is a sentence."}, nil},
		{"strict sentence opener", "This", true, []string{"This is a sentence."}, nil},
		{"strict not an opener", "is", true, nil, ErrStartNotFound},
		{"loose anywhere", "is", false, []string{"is a sentence.", "is a sample.", "is it."}, nil},
		{"unknown word", "zebra", false, nil, ErrStartNotFound},
		{"too long", "This is a", true, nil, ErrStartTooLong},
		{"blank start", "  ", true, []string{"This is a sentence."}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := text.MakeSentenceWithStart(tc.beginning, tc.strict, noTest)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil || !ok {
				t.Fatalf("MakeSentenceWithStart(%q) = %q, %v, %v", tc.beginning, got, ok, err)
			}
			if !slices.Contains(tc.want, got) {
				t.Errorf("MakeSentenceWithStart(%q) = %q, want one of %q", tc.beginning, got, tc.want)
			}
		})
	}
}

func TestCombineTexts(t *testing.T) {
	a := mustText(t, "Cats chase mice.", WithStateSize(1))
	b := mustText(t, "Cats chase birds.", WithStateSize(1))

	combined, err := CombineTexts([]*Text{a, b}, []int{3, 1})
	if err != nil {
		t.Fatalf("CombineTexts() error = %v", err)
	}
	if got, want := combined.SourceText(), "Cats chase mice. Cats chase birds."; got != want {
		t.Errorf("SourceText() = %q, want %q", got, want)
	}
	want := []Transition{{Word: "mice.", Weight: 3}, {Word: "birds.", Weight: 1}}
	got := combined.Chain().Transitions([]string{"chase"})
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Transitions(chase) = %+v, want %+v", got, want)
	}

	c := mustText(t, "Cats chase birds.", WithStateSize(2))
	if _, err := CombineTexts([]*Text{a, c}, nil); !errors.Is(err, ErrStateSizeMismatch) {
		t.Errorf("CombineTexts(mismatch) error = %v, want ErrStateSizeMismatch", err)
	}

	unretained := mustText(t, "Dogs chase cats.", WithStateSize(1), WithRetainOriginal(false))
	mixed, err := CombineTexts([]*Text{a, unretained}, nil)
	if err != nil {
		t.Fatalf("CombineTexts(mixed) error = %v", err)
	}
	if mixed.SourceText() != "" {
		t.Errorf("SourceText() = %q, want empty when an input dropped its source", mixed.SourceText())
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	text := mustText(t, "One two three.", WithLogger(logger))
	if !strings.Contains(buf.String(), "Text model built") {
		t.Errorf("expected build log, got %q", buf.String())
	}

	buf.Reset()
	text.MakeSentence(WithTries(1))
	if !strings.Contains(buf.String(), "reason=overlap") {
		t.Errorf("expected rejection log, got %q", buf.String())
	}
}

func BenchmarkNewText(b *testing.B) {
	corpus := createBenchmarkCorpus()
	b.SetBytes(int64(len(corpus)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := NewText(corpus); err != nil {
			b.Fatalf("NewText() failed: %v", err)
		}
	}
}

func BenchmarkMakeSentence(b *testing.B) {
	text := mustText(b, createBenchmarkCorpus())
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		text.MakeSentence()
	}
}
