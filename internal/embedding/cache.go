package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached wraps an Embedder with an in-process ristretto cache so
// repeated embeds of the same text (re-runs of a query, consolidation
// passes over the same content) skip the provider round trip.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with a ~16MB vector cache.
func NewCached(inner Embedder) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Dims() int { return c.inner.Dims() }

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.(Vector); ok {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Close releases the cache's background goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}
