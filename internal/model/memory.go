// Package model defines the core memory record types.
package model

import "time"

// Tier classifies a record as short-term or long-term memory.
type Tier string

const (
	TierSTM Tier = "stm"
	TierLTM Tier = "ltm"
)

// Type is the specific memory type within a tier.
type Type string

const (
	// STM types.
	TypeWorking       Type = "working"
	TypeSemanticCache Type = "semantic_cache"

	// LTM types.
	TypeProceduralTool       Type = "procedural_tool"
	TypeProceduralWorkflow   Type = "procedural_workflow"
	TypeEpisodicConversation Type = "episodic_conversation"
	TypeEpisodicSummary      Type = "episodic_summary"
	TypeSemanticKnowledge    Type = "semantic_knowledge"
	TypeSharedEntity         Type = "shared_entity"
	TypeSharedPersona        Type = "shared_persona"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[Type]bool{
	TypeWorking:              true,
	TypeSemanticCache:        true,
	TypeProceduralTool:       true,
	TypeProceduralWorkflow:   true,
	TypeEpisodicConversation: true,
	TypeEpisodicSummary:      true,
	TypeSemanticKnowledge:    true,
	TypeSharedEntity:         true,
	TypeSharedPersona:        true,
}

// TierOf derives the tier from a memory type. The tier is fixed at
// creation and never changes afterward; promotion creates a new record.
func TierOf(t Type) Tier {
	if t == TypeWorking || t == TypeSemanticCache {
		return TierSTM
	}
	return TierLTM
}

// Record is a stored memory. One struct covers every variant; the
// memory type tag plus the open metadata bag replaces a class hierarchy.
type Record struct {
	ID    string `json:"id"`
	Tier  Tier   `json:"tier"`
	Type  Type   `json:"memory_type"`
	Owner string `json:"owner,omitempty"`
	// Shared marks family/system-wide visibility regardless of owner.
	Shared bool `json:"shared,omitempty"`

	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	HasEmbedding bool      `json:"has_embedding"`

	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Timestamp is the logical event time, usually equal to CreatedAt.
	Timestamp    time.Time  `json:"timestamp"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	Importance  float64 `json:"importance_score"`
	DecayScore  float64 `json:"decay_score"`
	AccessCount int     `json:"access_count"`

	// PromotedFrom links an LTM record back to the STM record it was
	// promoted from. ConsolidatedInto links a superseded record forward
	// to the summary (or promoted copy) that replaced it.
	PromotedFrom     string `json:"promoted_from,omitempty"`
	ConsolidatedInto string `json:"consolidated_into,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsSTM reports whether the record lives in the short-term tier.
func (r *Record) IsSTM() bool {
	return r.Tier == TierSTM
}

// Superseded reports whether the record has been consolidated into a
// summary (or promoted). Superseded records are excluded from retrieval
// and promotion but are only removed by an explicit delete.
func (r *Record) Superseded() bool {
	return r.ConsolidatedInto != ""
}

// Default scores for new records.
const (
	DefaultImportance = 0.5
	DefaultDecay      = 1.0
)
