package coordinator

import (
	"context"

	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/store"
)

// Store passthroughs for administrative tooling. The coordinator is the
// single caller-facing surface; these add no behavior of their own.

func (c *Coordinator) Get(ctx context.Context, id string) (*model.Record, error) {
	return c.store.Get(ctx, id)
}

func (c *Coordinator) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	return c.store.Update(ctx, id, fields)
}

func (c *Coordinator) Delete(ctx context.Context, id string) (bool, error) {
	return c.store.Delete(ctx, id)
}

func (c *Coordinator) FindByType(ctx context.Context, p store.FindByTypeParams) ([]model.Record, error) {
	return c.store.FindByType(ctx, p)
}

func (c *Coordinator) TextSearch(ctx context.Context, p store.TextSearchParams) ([]store.ScoredRecord, error) {
	return c.store.TextSearch(ctx, p)
}

func (c *Coordinator) GetStats(ctx context.Context, owner string) (*store.Stats, error) {
	return c.store.GetStats(ctx, owner)
}
