// Package retrieval implements hybrid search over the memory store:
// semantic and lexical legs run in parallel and are fused with
// reciprocal rank fusion, so results surface whether the query matches
// by meaning or by exact keyword.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/engramdb/engram/internal/embedding"
	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/store"
)

// Searcher is the slice of the store the engine needs.
type Searcher interface {
	TextSearch(ctx context.Context, p store.TextSearchParams) ([]store.ScoredRecord, error)
	SearchByVector(ctx context.Context, p store.VectorSearchParams) ([]store.ScoredRecord, error)
	FindBySession(ctx context.Context, p store.FindBySessionParams) ([]model.Record, error)
	FindByType(ctx context.Context, p store.FindByTypeParams) ([]model.Record, error)
}

// Options tune the fusion. Zero values fall back to defaults.
type Options struct {
	// RRFK is the rank-smoothing constant in 1/(k+rank).
	RRFK int
	// VectorWeight and TextWeight scale each leg's rank contribution.
	VectorWeight float64
	TextWeight   float64
	// MinScore is the default similarity floor for the vector leg.
	MinScore float64
}

// DefaultOptions weight the semantic leg above the lexical one.
func DefaultOptions() Options {
	return Options{
		RRFK:         60,
		VectorWeight: 0.6,
		TextWeight:   0.4,
		MinScore:     0.3,
	}
}

// Engine runs hybrid retrieval. The embedder may be nil, in which case
// every search is lexical-only.
type Engine struct {
	store    Searcher
	embedder embedding.Embedder
	opts     Options
	log      *zap.Logger
}

func NewEngine(s Searcher, emb embedding.Embedder, opts Options, log *zap.Logger) *Engine {
	def := DefaultOptions()
	if opts.RRFK <= 0 {
		opts.RRFK = def.RRFK
	}
	if opts.VectorWeight <= 0 {
		opts.VectorWeight = def.VectorWeight
	}
	if opts.TextWeight <= 0 {
		opts.TextWeight = def.TextWeight
	}
	if opts.MinScore <= 0 {
		opts.MinScore = def.MinScore
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, embedder: emb, opts: opts, log: log}
}

// SearchParams describes one hybrid search.
type SearchParams struct {
	Query string
	Owner string
	Types []model.Type
	Tier  model.Tier
	Limit int
	// MinScore overrides the engine default when > 0.
	MinScore float64
	// Weight overrides, for callers that want a different balance.
	VectorWeight float64
	TextWeight   float64
}

// Result is a fused match with per-leg diagnostics.
type Result struct {
	model.Record
	VectorScore   float64
	TextScore     float64
	CombinedScore float64
	// Sources lists which legs matched: "vector", "text".
	Sources []string
}

// HybridSearch runs both legs in parallel and fuses by reciprocal
// rank. A lexical failure fails the search; a semantic failure (no
// embedder, provider down) degrades to lexical-only.
func (e *Engine) HybridSearch(ctx context.Context, p SearchParams) ([]Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	minScore := p.MinScore
	if minScore <= 0 {
		minScore = e.opts.MinScore
	}

	// Each leg over-fetches so fusion has candidates beyond the cut.
	legLimit := limit * 2

	var textHits, vecHits []store.ScoredRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.store.TextSearch(gctx, store.TextSearchParams{
			Query: p.Query,
			Owner: p.Owner,
			Types: p.Types,
			Tier:  p.Tier,
			Limit: legLimit,
		})
		if err != nil {
			return fmt.Errorf("text search: %w", err)
		}
		textHits = hits
		return nil
	})
	g.Go(func() error {
		if e.embedder == nil {
			return nil
		}
		vec, err := e.embedder.Embed(gctx, p.Query)
		if err != nil {
			e.log.Warn("query embedding failed, lexical-only", zap.Error(err))
			return nil
		}
		hits, err := e.store.SearchByVector(gctx, store.VectorSearchParams{
			Vector:   vec,
			Owner:    p.Owner,
			Types:    p.Types,
			Tier:     p.Tier,
			Limit:    legLimit,
			MinScore: minScore,
		})
		if err != nil {
			e.log.Warn("vector search failed, lexical-only", zap.Error(err))
			return nil
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := e.fuse(vecHits, textHits, p)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// fuse merges the two ranked lists with weighted reciprocal rank
// fusion: each hit contributes weight/(k+rank), ranks starting at 1.
func (e *Engine) fuse(vecHits, textHits []store.ScoredRecord, p SearchParams) []Result {
	vw := p.VectorWeight
	if vw <= 0 {
		vw = e.opts.VectorWeight
	}
	tw := p.TextWeight
	if tw <= 0 {
		tw = e.opts.TextWeight
	}
	k := float64(e.opts.RRFK)

	byID := make(map[string]*Result, len(vecHits)+len(textHits))
	order := make([]string, 0, len(vecHits)+len(textHits))

	add := func(hits []store.ScoredRecord, weight float64, source string, raw func(*Result, float64)) {
		for i, h := range hits {
			r, ok := byID[h.ID]
			if !ok {
				rec := h.Record
				r = &Result{Record: rec}
				byID[h.ID] = r
				order = append(order, h.ID)
			}
			r.CombinedScore += weight / (k + float64(i+1))
			r.Sources = append(r.Sources, source)
			raw(r, h.Score)
		}
	}

	add(vecHits, vw, "vector", func(r *Result, s float64) { r.VectorScore = s })
	add(textHits, tw, "text", func(r *Result, s float64) { r.TextScore = s })

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}

	// Score descending; ties break toward recency, then id for
	// deterministic output.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].ID > results[j].ID
	})
	return results
}
