// Package index provides the optional ANN vector index used by the
// store for native similarity search. Without an index the store falls
// back to a bounded brute-force scan.
package index

import "context"

// Hit is one nearest-neighbor match.
type Hit struct {
	ID         string
	Similarity float32
}

// VectorIndex is a minimal top-K cosine similarity index. Filtering by
// owner/type/tier happens in the store after hydration; the index only
// knows ids and vectors.
type VectorIndex interface {
	Add(ctx context.Context, id string, vector []float32) error
	Remove(ctx context.Context, id string) error
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
