package markov

import (
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// constantRandom always picks the same position, clamped to the range.
type constantRandom int

func (r constantRandom) IntN(n int) int {
	return min(int(r), n-1)
}

// countingRandom records every draw and delegates to a constant pick.
type countingRandom struct {
	pick  int
	calls int
	bound []int
}

func (r *countingRandom) IntN(n int) int {
	r.calls++
	r.bound = append(r.bound, n)
	return min(r.pick, n-1)
}

// mustText builds a Text or fails the test.
func mustText(t testing.TB, input string, opts ...BuildOption) *Text {
	t.Helper()
	text, err := NewText(input, opts...)
	if err != nil {
		t.Fatalf("NewText() error = %v", err)
	}
	return text
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads the Go documentation comments shipped with the
// toolchain to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/doc.go"),
			filepath.Join(goRoot, "src/fmt/doc.go"),
			filepath.Join(goRoot, "src/regexp/syntax/doc.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = strings.Repeat("This is a fallback corpus for benchmarking. It is not very long but will prevent a crash. ", 50)
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
