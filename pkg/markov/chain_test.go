package markov

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func corpusOf(sentences ...string) [][]string {
	corpus := make([][]string, len(sentences))
	for i, s := range sentences {
		corpus[i] = SplitIntoWords(s)
	}
	return corpus
}

func TestBuildChainEmpty(t *testing.T) {
	testCases := []struct {
		name      string
		corpus    [][]string
		stateSize int
	}{
		{"zero state size", corpusOf("a b c."), 0},
		{"negative state size", corpusOf("a b c."), -1},
		{"nil corpus", nil, 2},
		{"only empty sentences", [][]string{{}, {}}, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := BuildChain(tc.corpus, tc.stateSize)
			if c != EmptyChain {
				t.Fatalf("BuildChain() = %p, want EmptyChain", c)
			}
			if got := c.GenerateSentence(); len(got) != 0 {
				t.Errorf("GenerateSentence() on empty chain = %q, want nothing", got)
			}
		})
	}
}

func TestBuildChainStates(t *testing.T) {
	c := BuildChain(corpusOf("one two three four"), 2)

	// One state per word plus the final state leading to the end.
	if got, want := c.Size(), 5; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	if got := c.StateSize(); got != 2 {
		t.Errorf("StateSize() = %d, want 2", got)
	}
	if c.IsEmpty() {
		t.Error("IsEmpty() = true for a trained chain")
	}
}

func TestGenerateSingleSentence(t *testing.T) {
	c := BuildChain(corpusOf("This is a sentence."), 2)
	got := c.GenerateSentence()
	want := []string{"This", "is", "a", "sentence."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GenerateSentence() = %q, want %q", got, want)
	}
}

func TestGenerateSharedPrefix(t *testing.T) {
	testCases := []struct {
		pick int
		want string
	}{
		{0, "This is a sentence."},
		{1, "This is a sample."},
	}

	for _, tc := range testCases {
		c := BuildChain(corpusOf("This is a sentence.", "This is a sample."), 1)
		c.SetRandom(constantRandom(tc.pick))
		got := strings.Join(c.GenerateSentence(), " ")
		if got != tc.want {
			t.Errorf("pick %d: GenerateSentence() = %q, want %q", tc.pick, got, tc.want)
		}
	}
}

func TestTransitions(t *testing.T) {
	c := BuildChain(corpusOf("a x", "a x", "a y"), 1)

	testCases := []struct {
		name  string
		state []string
		want  []Transition
	}{
		{
			name:  "start state",
			state: nil,
			want:  []Transition{{Word: "a", Weight: 3}},
		},
		{
			name:  "first seen order",
			state: []string{"a"},
			want:  []Transition{{Word: "x", Weight: 2}, {Word: "y", Weight: 1}},
		},
		{
			name:  "end transition",
			state: []string{"x"},
			want:  []Transition{{Word: EndTokenText, Weight: 2, End: true}},
		},
		{
			name:  "unknown word",
			state: []string{"z"},
			want:  nil,
		},
		{
			name:  "too long",
			state: []string{"a", "x"},
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Transitions(tc.state)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Transitions(%q) = %+v, want %+v", tc.state, got, tc.want)
			}
		})
	}
}

func TestSamplingFollowsWeights(t *testing.T) {
	c := BuildChain(corpusOf("a x", "a x", "a y"), 1)

	// Draws map onto the cumulative weights [2, 3] of state "a".
	testCases := []struct {
		pick int
		want string
	}{
		{0, "a x"},
		{1, "a x"},
		{2, "a y"},
	}
	for _, tc := range testCases {
		c.SetRandom(constantRandom(tc.pick))
		if got := strings.Join(c.GenerateSentence(), " "); got != tc.want {
			t.Errorf("pick %d: GenerateSentence() = %q, want %q", tc.pick, got, tc.want)
		}
	}
}

func TestSamplingDrawBounds(t *testing.T) {
	c := BuildChain(corpusOf("a x", "a x", "a y"), 1)
	rng := &countingRandom{}
	c.SetRandom(rng)
	c.GenerateSentence()

	// Start state total 3, state "a" total 3, state "x" total 2.
	if want := []int{3, 3, 2}; !reflect.DeepEqual(rng.bound, want) {
		t.Errorf("draw bounds = %v, want %v", rng.bound, want)
	}
}

// outOfRangeRandom returns n itself, one past the allowed range.
type outOfRangeRandom struct{}

func (outOfRangeRandom) IntN(n int) int { return n }

func TestSamplingRejectsOutOfRangeDraw(t *testing.T) {
	c := BuildChain(corpusOf("a x", "a y"), 1)
	c.SetRandom(outOfRangeRandom{})

	defer func() {
		r := recover()
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "RandomSource.IntN") {
			t.Errorf("panic = %v, want a message naming RandomSource.IntN", r)
		}
	}()
	c.GenerateSentence()
}

func TestSeededReproducibility(t *testing.T) {
	corpus := corpusOf(
		"The cat sat on the mat.",
		"The dog sat on the rug.",
		"A cat ran to the dog.",
		"The dog ran on the mat.",
	)
	a := BuildChain(corpus, 1)
	b := BuildChain(corpus, 1)
	a.SetRandom(NewSeededRandom(42))
	b.SetRandom(NewSeededRandom(42))

	for i := 0; i < 20; i++ {
		got, want := a.GenerateSentence(), b.GenerateSentence()
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("iteration %d: %q != %q", i, got, want)
		}
	}
}

func TestWalk(t *testing.T) {
	c := BuildChain(corpusOf("one two three four"), 2)

	testCases := []struct {
		name  string
		start []string
		want  []string
	}{
		{"full window", []string{"one", "two"}, []string{"three", "four"}},
		{"padded window", []string{"one"}, []string{"two", "three", "four"}},
		{"empty start", nil, []string{"one", "two", "three", "four"}},
		{"unknown word", []string{"five"}, nil},
		{"too long", []string{"one", "two", "three"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Walk(tc.start)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Walk(%q) = %q, want %q", tc.start, got, tc.want)
			}
		})
	}
}

func TestCombineChains(t *testing.T) {
	a := BuildChain(corpusOf("a b"), 1)
	b := BuildChain(corpusOf("a c"), 1)

	combined, err := CombineChains([]*Chain{a, b}, []int{2, 1})
	if err != nil {
		t.Fatalf("CombineChains() error = %v", err)
	}
	want := []Transition{{Word: "b", Weight: 2}, {Word: "c", Weight: 1}}
	if got := combined.Transitions([]string{"a"}); !reflect.DeepEqual(got, want) {
		t.Errorf("Transitions(a) = %+v, want %+v", got, want)
	}
	if got := combined.Transitions(nil); !reflect.DeepEqual(got, []Transition{{Word: "a", Weight: 3}}) {
		t.Errorf("Transitions(nil) = %+v", got)
	}

	equal, err := CombineChains([]*Chain{a, b, EmptyChain}, nil)
	if err != nil {
		t.Fatalf("CombineChains(nil weights) error = %v", err)
	}
	want = []Transition{{Word: "b", Weight: 1}, {Word: "c", Weight: 1}}
	if got := equal.Transitions([]string{"a"}); !reflect.DeepEqual(got, want) {
		t.Errorf("equal weights: Transitions(a) = %+v, want %+v", got, want)
	}
}

func TestCombineChainsErrors(t *testing.T) {
	one := BuildChain(corpusOf("a b c"), 1)
	two := BuildChain(corpusOf("a b c"), 2)

	if _, err := CombineChains([]*Chain{one, two}, nil); !errors.Is(err, ErrStateSizeMismatch) {
		t.Errorf("mismatched state sizes: error = %v, want ErrStateSizeMismatch", err)
	}
	if _, err := CombineChains([]*Chain{one}, []int{1, 2}); err == nil {
		t.Error("weights length mismatch: expected error")
	}
	if _, err := CombineChains([]*Chain{one}, []int{0}); err == nil {
		t.Error("zero weight: expected error")
	}

	empty, err := CombineChains([]*Chain{EmptyChain}, nil)
	if err != nil || empty != EmptyChain {
		t.Errorf("CombineChains(empty) = %p, %v; want EmptyChain", empty, err)
	}
}

func TestChainStats(t *testing.T) {
	c := BuildChain(corpusOf("a x", "a x", "b y"), 1)
	want := ChainStats{
		States:        5, // start, a, b, x, y
		Transitions:   6, // start->a, start->b, a->x, b->y, x->END, y->END
		TotalWeight:   9,
		StartingWords: 2,
		Vocabulary:    4,
	}
	if got := c.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if got := EmptyChain.Stats(); got != (ChainStats{}) {
		t.Errorf("EmptyChain.Stats() = %+v, want zero", got)
	}
}

func BenchmarkBuildChain(b *testing.B) {
	var corpus [][]string
	for _, sentence := range SplitIntoSentences(createBenchmarkCorpus()) {
		if strings.TrimSpace(sentence) != "" {
			corpus = append(corpus, SplitIntoWords(sentence))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BuildChain(corpus, 2)
	}
}
