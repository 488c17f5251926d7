package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches common small sentence-embedding models.
const DefaultDimensions = 384

// HashProvider is a deterministic offline embedding provider. It derives a
// pseudo-random unit vector from an FNV hash of the text, so identical text
// always yields an identical vector. Vectors carry no semantic meaning beyond
// exact-text identity, which is enough for tests and for running without a
// model server.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hash-based provider.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashProvider{dimensions: dimensions}
}

// Embed creates a deterministic embedding from text.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		// Linear congruential step expands the hash into a full vector.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the vector length.
func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
