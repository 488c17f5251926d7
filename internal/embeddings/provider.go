package embeddings

import "context"

// Provider turns text into a fixed-length vector for similarity search.
// Implementations must be deterministic for identical input within one
// process lifetime; the store treats them as an opaque codec.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
