// Package store provides the memory record storage interface and its
// SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/engramdb/engram/internal/model"
)

var (
	// ErrEmptyContent rejects a write with blank content.
	ErrEmptyContent = errors.New("memory content is empty")
	// ErrNotFound means the id has no record (or it was deleted).
	ErrNotFound = errors.New("memory not found")
	// ErrUnavailable means the backing store cannot be reached.
	ErrUnavailable = errors.New("backing store unavailable")
)

// StoreParams holds parameters for creating a memory record.
type StoreParams struct {
	Type           model.Type
	Content        string
	Owner          string
	Shared         bool
	SessionID      string
	ConversationID string

	// Importance defaults to model.DefaultImportance when zero.
	Importance float64

	// SkipEmbedding suppresses embedding generation; by default a
	// vector is generated when an embedder is configured. Embedding
	// failure is non-fatal: the record is stored without a vector.
	SkipEmbedding bool

	// TTL sets expires_at relative to now. Only honored for STM types.
	TTL time.Duration

	PromotedFrom string
	Metadata     map[string]any
}

// FindByTypeParams filters a by-type scan, most recent first.
type FindByTypeParams struct {
	Type          model.Type
	Owner         string
	Limit         int
	IncludeShared bool
}

// FindBySessionParams filters a session scan, chronological order.
type FindBySessionParams struct {
	SessionID string
	Types     []model.Type
	Limit     int
}

// FindByUserParams filters a by-owner scan, most recent first.
type FindByUserParams struct {
	Owner         string
	Tier          model.Tier // empty = both tiers
	IncludeShared bool
	Limit         int
}

// TextSearchParams drives the lexical index.
type TextSearchParams struct {
	Query string
	Owner string
	Types []model.Type
	Tier  model.Tier
	Limit int
}

// VectorSearchParams drives similarity search over embedded records.
type VectorSearchParams struct {
	Vector   []float32
	Owner    string
	Types    []model.Type
	Tier     model.Tier
	Limit    int
	MinScore float64
}

// ScoredRecord pairs a record with a search relevance score.
type ScoredRecord struct {
	model.Record
	Score float64 `json:"score"`
}

// TypeStats summarizes records of one memory type.
type TypeStats struct {
	Count         int     `json:"count"`
	AvgImportance float64 `json:"avg_importance"`
	AvgDecay      float64 `json:"avg_decay"`
}

// TierStats summarizes one memory tier.
type TierStats struct {
	Total int                      `json:"total"`
	Types map[model.Type]TypeStats `json:"types"`
}

// Stats holds memory statistics grouped by tier and type.
type Stats struct {
	STM   TierStats `json:"stm"`
	LTM   TierStats `json:"ltm"`
	Total int       `json:"total"`
}

// Store defines the record storage contract.
type Store interface {
	// Store creates a record, deriving the tier from the type.
	// Returns ErrEmptyContent if content is blank.
	Store(ctx context.Context, p StoreParams) (string, error)

	// Get retrieves a record by id, incrementing its access count and
	// refreshing last_accessed. Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.Record, error)

	// Update writes the given fields. Immutable fields (id, created_at,
	// tier, memory_type) are silently dropped. Reports false when no
	// record matched.
	Update(ctx context.Context, id string, fields map[string]any) (bool, error)

	// Delete hard-deletes a record. Reports false when nothing matched.
	Delete(ctx context.Context, id string) (bool, error)

	FindByType(ctx context.Context, p FindByTypeParams) ([]model.Record, error)
	FindBySession(ctx context.Context, p FindBySessionParams) ([]model.Record, error)
	FindByUser(ctx context.Context, p FindByUserParams) ([]model.Record, error)

	// TextSearch queries the lexical index; results are ordered by
	// relevance, descending. Superseded and expired records are excluded.
	TextSearch(ctx context.Context, p TextSearchParams) ([]ScoredRecord, error)

	// SearchByVector returns the nearest embedded records by cosine
	// similarity, via the configured vector index or a bounded
	// brute-force scan. Superseded and expired records are excluded.
	SearchByVector(ctx context.Context, p VectorSearchParams) ([]ScoredRecord, error)

	GetStats(ctx context.Context, owner string) (*Stats, error)

	// GetCacheEntry finds a non-expired semantic_cache record by query
	// hash. Returns nil (no error) on a miss.
	GetCacheEntry(ctx context.Context, hash, owner string) (*model.Record, error)

	// RecordCacheHit bumps a cache entry's hit counter and access time.
	RecordCacheHit(ctx context.Context, id string) error

	// MarkConsolidated sets consolidated_into only if it is currently
	// absent. Reports false when the link was already set; this is the
	// compare-and-set guard behind at-most-once promotion.
	MarkConsolidated(ctx context.Context, id, into string) (bool, error)

	// DeleteExpired removes STM records past their expires_at. Read
	// paths already filter expired rows; this reclaims the space.
	DeleteExpired(ctx context.Context) (int, error)

	// LTMBatch returns up to limit LTM records for decay recomputation.
	LTMBatch(ctx context.Context, owner string, limit int) ([]model.Record, error)

	// CountConsolidationCandidates counts unconsolidated LTM
	// conversation records whose decay score fell below cutoff.
	CountConsolidationCandidates(ctx context.Context, owner string, cutoff float64) (int, error)

	// FindEntity looks up a shared_entity record by case-insensitive
	// entity name. Returns nil (no error) when absent.
	FindEntity(ctx context.Context, name string) (*model.Record, error)

	Close() error
}
