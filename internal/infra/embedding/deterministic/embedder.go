// Package deterministic provides a network-free embedder used when no
// provider is configured, moved verbatim in spirit from
// internal/infra/uploadask/embedder/deterministic.go.
package deterministic

import (
	"context"
	"hash/fnv"
)

// Embedder hashes text into a pseudo-random, reproducible vector.
type Embedder struct {
	dim int
}

// New constructs the embedder with the given dimensionality.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = 32
	}
	return &Embedder{dim: dim}
}

// Embed converts each text into a pseudo-random vector derived from its FNV
// hash, so identical input always yields identical output.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(text))
		seed := hash.Sum64()
		for j := 0; j < e.dim; j++ {
			seed = seed*1099511628211 + 1469598103934665603
			vector[j] = float32(seed%997) / 997.0
		}
		vectors[i] = vector
	}
	return vectors, nil
}
