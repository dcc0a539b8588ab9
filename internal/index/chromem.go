package index

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex implements VectorIndex on chromem-go, a pure-Go embedded
// vector database.
type ChromemIndex struct {
	col *chromem.Collection
	mu  sync.RWMutex
}

// NewChromemIndex creates an in-memory chromem collection.
func NewChromemIndex() (*ChromemIndex, error) {
	db := chromem.NewDB()
	// No embedding func: vectors are always supplied by the caller.
	col, err := db.CreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{col: col}, nil
}

func (c *ChromemIndex) Add(ctx context.Context, id string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id, // content is unused; records live in the store
		Embedding: vector,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (c *ChromemIndex) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (c *ChromemIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem rejects nResults larger than the collection.
	if n := c.col.Count(); n < k {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := c.col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Similarity: r.Similarity})
	}
	return hits, nil
}
