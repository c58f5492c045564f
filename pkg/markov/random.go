package markov

import "math/rand/v2"

// RandomSource supplies the uniform integers used for weighted sampling.
// IntN must return a value in [0, n) for n > 0. Implementations are not
// required to be safe for concurrent use; give each Chain its own source
// when generating from several goroutines with a seeded source.
type RandomSource interface {
	IntN(n int) int
}

// defaultRandom draws from the math/rand/v2 top-level generator, which is
// safe for concurrent use.
type defaultRandom struct{}

func (defaultRandom) IntN(n int) int {
	return rand.IntN(n)
}

// NewSeededRandom returns a reproducible RandomSource. Two sources created
// with the same seed yield the same sequence, so a model sampled through
// them produces the same sentences.
func NewSeededRandom(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandom returns the default RandomSource, backed by the math/rand/v2
// top-level generator.
func NewRandom() RandomSource {
	return defaultRandom{}
}
