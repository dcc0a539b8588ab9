// Package coordinator orchestrates the memory tiers: query routing
// with a semantic cache, short-term to long-term promotion,
// consolidation of episodes into summaries, and the maintenance sweep.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/retrieval"
	"github.com/engramdb/engram/internal/store"
)

var (
	// ErrNotSTM rejects promotion of a record already in long-term
	// memory.
	ErrNotSTM = errors.New("record is not in short-term memory")
	// ErrAlreadyPromoted means another caller promoted the record
	// first.
	ErrAlreadyPromoted = errors.New("record was already promoted")
)

// Coordinator ties the store and retrieval engine together.
type Coordinator struct {
	store  store.Store
	engine *retrieval.Engine
	cfg    Config
	log    *zap.Logger

	// now is swapped out by tests to age records.
	now func() time.Time
}

func New(s store.Store, engine *retrieval.Engine, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:  s,
		engine: engine,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// QueryParams routes one query. When neither tier flag is set, both
// tiers are searched.
type QueryParams struct {
	Query      string
	Owner      string
	SessionID  string
	IncludeSTM bool
	IncludeLTM bool
	Limit      int
}

// QueryHit is one routed result, shaped for caching.
type QueryHit struct {
	ID      string     `json:"id"`
	Type    model.Type `json:"type"`
	Content string     `json:"content"`
	Score   float64    `json:"score"`
}

// QueryResult is the routed answer. Cached reports whether it was
// served from the semantic cache.
type QueryResult struct {
	Hits   []QueryHit
	Cached bool
}

// cacheKey derives the semantic-cache lookup hash: queries differing
// only in case or surrounding space share an entry.
func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])[:16]
}

// RouteQuery answers a query, first from the semantic cache, then via
// hybrid search over the requested tiers. Fresh results are cached
// best-effort; a cache write failure never fails the query.
func (c *Coordinator) RouteQuery(ctx context.Context, p QueryParams) (*QueryResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	if !p.IncludeSTM && !p.IncludeLTM {
		p.IncludeSTM, p.IncludeLTM = true, true
	}

	hash := cacheKey(p.Query)
	if entry, err := c.store.GetCacheEntry(ctx, hash, p.Owner); err != nil {
		c.log.Warn("cache lookup failed", zap.Error(err))
	} else if entry != nil {
		if hits, ok := decodeCachedHits(entry.Metadata); ok {
			if err := c.store.RecordCacheHit(ctx, entry.ID); err != nil {
				c.log.Warn("cache hit bookkeeping failed", zap.String("id", entry.ID), zap.Error(err))
			}
			return &QueryResult{Hits: hits, Cached: true}, nil
		}
	}

	var tiers []model.Tier
	if p.IncludeSTM {
		tiers = append(tiers, model.TierSTM)
	}
	if p.IncludeLTM {
		tiers = append(tiers, model.TierLTM)
	}

	seen := make(map[string]bool)
	var merged []retrieval.Result
	for _, tier := range tiers {
		results, err := c.engine.HybridSearch(ctx, retrieval.SearchParams{
			Query: p.Query,
			Owner: p.Owner,
			Tier:  tier,
			Limit: limit,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", tier, err)
		}
		for _, r := range results {
			if !seen[r.ID] {
				seen[r.ID] = true
				merged = append(merged, r)
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CombinedScore != merged[j].CombinedScore {
			return merged[i].CombinedScore > merged[j].CombinedScore
		}
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	hits := make([]QueryHit, 0, len(merged))
	for _, r := range merged {
		hits = append(hits, QueryHit{ID: r.ID, Type: r.Type, Content: r.Content, Score: r.CombinedScore})
	}

	if len(hits) > 0 {
		c.writeCache(ctx, p, hash, hits)
	}
	return &QueryResult{Hits: hits}, nil
}

func (c *Coordinator) writeCache(ctx context.Context, p QueryParams, hash string, hits []QueryHit) {
	cached := hits
	if len(cached) > c.cfg.CacheMaxResults {
		cached = cached[:c.cfg.CacheMaxResults]
	}
	entries := make([]QueryHit, len(cached))
	for i, h := range cached {
		if len(h.Content) > c.cfg.CacheContentLimit {
			h.Content = h.Content[:c.cfg.CacheContentLimit]
		}
		entries[i] = h
	}

	_, err := c.store.Store(ctx, store.StoreParams{
		Type:          model.TypeSemanticCache,
		Content:       p.Query,
		Owner:         p.Owner,
		SessionID:     p.SessionID,
		SkipEmbedding: true,
		TTL:           c.cfg.CacheTTL,
		Metadata: map[string]any{
			"query_hash":     hash,
			"cached_results": entries,
			"result_count":   len(entries),
			"cache_hits":     0,
		},
	})
	if err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}
}

// decodeCachedHits recovers the cached result list from a cache
// record's metadata. Metadata comes back from storage as generic JSON,
// so it is re-marshaled into the typed shape.
func decodeCachedHits(meta map[string]any) ([]QueryHit, bool) {
	raw, ok := meta["cached_results"]
	if !ok {
		return nil, false
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var hits []QueryHit
	if err := json.Unmarshal(buf, &hits); err != nil {
		return nil, false
	}
	return hits, true
}

// PromoteToLTM copies a short-term record into long-term memory and
// links the source to the copy. Safe under concurrency: the link is a
// compare-and-set, so exactly one promotion survives and the losers
// get ErrAlreadyPromoted.
func (c *Coordinator) PromoteToLTM(ctx context.Context, sourceID string, targetType model.Type) (string, error) {
	src, err := c.store.Get(ctx, sourceID)
	if err != nil {
		return "", err
	}
	if !src.IsSTM() {
		return "", fmt.Errorf("%w: %s is %s", ErrNotSTM, sourceID, src.Type)
	}
	if src.Superseded() {
		return "", ErrAlreadyPromoted
	}

	if targetType == "" {
		targetType = model.TypeEpisodicConversation
	}
	if model.TierOf(targetType) != model.TierLTM {
		return "", fmt.Errorf("target type %s is not long-term", targetType)
	}

	importance := src.Importance
	if importance < c.cfg.PromotionFloor {
		importance = c.cfg.PromotionFloor
	}

	meta := map[string]any{"promoted_at": c.now().UTC().Format(time.RFC3339)}
	for k, v := range src.Metadata {
		meta[k] = v
	}

	newID, err := c.store.Store(ctx, store.StoreParams{
		Type:           targetType,
		Content:        src.Content,
		Owner:          src.Owner,
		Shared:         src.Shared,
		SessionID:      src.SessionID,
		ConversationID: src.ConversationID,
		Importance:     importance,
		PromotedFrom:   sourceID,
		Metadata:       meta,
	})
	if err != nil {
		return "", fmt.Errorf("promote %s: %w", sourceID, err)
	}

	won, err := c.store.MarkConsolidated(ctx, sourceID, newID)
	if err != nil {
		return "", fmt.Errorf("link promotion: %w", err)
	}
	if !won {
		// Another promotion landed first; discard our copy.
		if _, derr := c.store.Delete(ctx, newID); derr != nil {
			c.log.Warn("orphaned promotion copy", zap.String("id", newID), zap.Error(derr))
		}
		return "", ErrAlreadyPromoted
	}

	c.log.Info("promoted to long-term memory",
		zap.String("source", sourceID),
		zap.String("target", newID),
		zap.String("type", string(targetType)))
	return newID, nil
}

// AutoPromoteSession promotes every working-memory record in the
// session at or above the importance threshold. Individual failures
// are logged and skipped.
func (c *Coordinator) AutoPromoteSession(ctx context.Context, sessionID string, threshold float64) ([]string, error) {
	if threshold <= 0 {
		threshold = c.cfg.PromotionThreshold
	}

	records, err := c.store.FindBySession(ctx, store.FindBySessionParams{
		SessionID: sessionID,
		Types:     []model.Type{model.TypeWorking},
	})
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	var promoted []string
	for _, rec := range records {
		if rec.Importance < threshold || rec.Superseded() {
			continue
		}
		id, err := c.PromoteToLTM(ctx, rec.ID, model.TypeEpisodicConversation)
		if err != nil {
			if !errors.Is(err, ErrAlreadyPromoted) {
				c.log.Warn("auto-promotion failed", zap.String("id", rec.ID), zap.Error(err))
			}
			continue
		}
		promoted = append(promoted, id)
	}
	return promoted, nil
}

// Consolidate rolls a set of episodic conversations into one summary
// record and links each source to it. Already-consolidated sources are
// skipped, so re-running with the same ids is harmless.
func (c *Coordinator) Consolidate(ctx context.Context, sourceIDs []string, summary, owner string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", store.ErrEmptyContent
	}

	var sources []*model.Record
	for _, id := range sourceIDs {
		rec, err := c.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.log.Warn("consolidation source missing", zap.String("id", id))
				continue
			}
			return "", err
		}
		if rec.Superseded() {
			continue
		}
		sources = append(sources, rec)
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("no consolidatable sources")
	}

	topics := newCappedSet(c.cfg.MaxTopics)
	keywords := newCappedSet(c.cfg.MaxKeywords)
	entities := newCappedSet(c.cfg.MaxEntities)
	ids := make([]string, 0, len(sources))
	for _, rec := range sources {
		ids = append(ids, rec.ID)
		topics.addAll(metaStrings(rec.Metadata, "topics"))
		keywords.addAll(metaStrings(rec.Metadata, "keywords"))
		entities.addAll(metaStrings(rec.Metadata, "entities"))
	}

	summaryID, err := c.store.Store(ctx, store.StoreParams{
		Type:       model.TypeEpisodicSummary,
		Content:    summary,
		Owner:      owner,
		Importance: 0.7,
		Metadata: map[string]any{
			"source_memory_ids": ids,
			"source_count":      len(ids),
			"consolidated_at":   c.now().UTC().Format(time.RFC3339),
			"topics":            topics.values,
			"keywords":          keywords.values,
			"entities":          entities.values,
		},
	})
	if err != nil {
		return "", fmt.Errorf("store summary: %w", err)
	}

	for _, rec := range sources {
		won, err := c.store.MarkConsolidated(ctx, rec.ID, summaryID)
		if err != nil || !won {
			continue
		}
		// Consolidated episodes matter less on their own now.
		imp := rec.Importance - 0.2
		if imp < 0 {
			imp = 0
		}
		if _, err := c.store.Update(ctx, rec.ID, map[string]any{"importance_score": imp}); err != nil {
			c.log.Warn("importance demotion failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}

	c.log.Info("consolidated episodes",
		zap.Int("sources", len(ids)),
		zap.String("summary", summaryID))
	return summaryID, nil
}

// MarkImportant pins a record near the top of the importance scale so
// decay barely touches it.
func (c *Coordinator) MarkImportant(ctx context.Context, id string) error {
	ok, err := c.store.Update(ctx, id, map[string]any{"importance_score": 0.9})
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// KnowledgeParams describes a long-term fact to remember.
type KnowledgeParams struct {
	Content string
	Owner   string
	Shared  bool
	// SourceID links the fact back to the memory it was extracted from.
	SourceID string
	// Importance defaults to 0.7; extracted facts matter more than
	// ordinary turns.
	Importance float64
	Metadata   map[string]any
}

// StoreKnowledge writes a semantic-knowledge record directly into
// long-term memory, bypassing promotion.
func (c *Coordinator) StoreKnowledge(ctx context.Context, p KnowledgeParams) (string, error) {
	importance := p.Importance
	if importance <= 0 {
		importance = 0.7
	}

	meta := map[string]any{}
	for k, v := range p.Metadata {
		meta[k] = v
	}
	if p.SourceID != "" {
		meta["source_memory_id"] = p.SourceID
	}

	return c.store.Store(ctx, store.StoreParams{
		Type:       model.TypeSemanticKnowledge,
		Content:    p.Content,
		Owner:      p.Owner,
		Shared:     p.Shared,
		Importance: importance,
		Metadata:   meta,
	})
}

// EntityParams describes a shared entity mention.
type EntityParams struct {
	Name string
	// EntityType tags the kind of entity: person, place, pet.
	EntityType string
	// Context is what was just said about the entity; it becomes the
	// record content.
	Context  string
	Metadata map[string]any
}

// UpsertEntity creates or refreshes a shared entity profile, matched
// by case-insensitive name. Repeat mentions bump mention_count.
func (c *Coordinator) UpsertEntity(ctx context.Context, p EntityParams) (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", fmt.Errorf("empty entity name")
	}
	now := c.now().UTC().Format(time.RFC3339)

	existing, err := c.store.FindEntity(ctx, p.Name)
	if err != nil {
		return "", err
	}

	merged := map[string]any{"entity_name": p.Name}
	if p.EntityType != "" {
		merged["entity_type"] = p.EntityType
	}
	for k, v := range p.Metadata {
		merged[k] = v
	}

	if existing != nil {
		for k, v := range existing.Metadata {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
		mentions, _ := existing.Metadata["mention_count"].(float64)
		merged["mention_count"] = int(mentions) + 1
		merged["last_mentioned"] = now

		if _, err := c.store.Update(ctx, existing.ID, map[string]any{
			"content":  p.Context,
			"metadata": merged,
		}); err != nil {
			return "", fmt.Errorf("update entity: %w", err)
		}
		return existing.ID, nil
	}

	merged["mention_count"] = 1
	merged["last_mentioned"] = now
	return c.store.Store(ctx, store.StoreParams{
		Type:       model.TypeSharedEntity,
		Content:    p.Context,
		Shared:     true,
		Importance: 0.6,
		Metadata:   merged,
	})
}

// cappedSet keeps first-seen order up to a cap.
type cappedSet struct {
	cap    int
	seen   map[string]bool
	values []string
}

func newCappedSet(cap int) *cappedSet {
	return &cappedSet{cap: cap, seen: map[string]bool{}, values: []string{}}
}

func (s *cappedSet) addAll(vals []string) {
	for _, v := range vals {
		if len(s.values) >= s.cap {
			return
		}
		if v == "" || s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.values = append(s.values, v)
	}
}

func metaStrings(meta map[string]any, key string) []string {
	raw, ok := meta[key]
	if !ok {
		return nil
	}
	switch vals := raw.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
