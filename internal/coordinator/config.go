package coordinator

import "time"

// Config holds the coordinator's tuning knobs.
type Config struct {
	// WorkingTTL is the lifetime of a working-memory record.
	WorkingTTL time.Duration
	// CacheTTL is the lifetime of a semantic-cache entry.
	CacheTTL time.Duration
	// CacheMaxResults caps how many results one cache entry stores.
	CacheMaxResults int
	// CacheContentLimit truncates cached result content to this many
	// characters.
	CacheContentLimit int

	// PromotionThreshold is the minimum importance for auto-promotion.
	PromotionThreshold float64
	// PromotionFloor is the minimum importance a promoted record gets.
	PromotionFloor float64

	// DecayWriteDelta suppresses decay writes smaller than this.
	DecayWriteDelta float64
	// MaintenanceBatch bounds how many LTM records one maintenance run
	// rescores.
	MaintenanceBatch int
	// ConsolidationDecayCutoff marks records below it as candidates.
	ConsolidationDecayCutoff float64

	// EmbedImportanceMin is the importance at which working memory
	// gets an embedding. Below it, turns stay lexical-only.
	EmbedImportanceMin float64

	// Caps on aggregated consolidation metadata.
	MaxTopics   int
	MaxKeywords int
	MaxEntities int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		WorkingTTL:               8 * time.Hour,
		CacheTTL:                 time.Hour,
		CacheMaxResults:          20,
		CacheContentLimit:        500,
		PromotionThreshold:       0.7,
		PromotionFloor:           0.6,
		DecayWriteDelta:          0.05,
		MaintenanceBatch:         500,
		ConsolidationDecayCutoff: 0.3,
		EmbedImportanceMin:       0.6,
		MaxTopics:                10,
		MaxKeywords:              15,
		MaxEntities:              10,
	}
}
