package coordinator

import (
	"context"

	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/retrieval"
	"github.com/engramdb/engram/internal/store"
)

// WorkingParams describes one conversation turn.
type WorkingParams struct {
	Content        string
	Role           string
	Owner          string
	SessionID      string
	ConversationID string
	// Importance defaults to 0.5. Turns below the embed threshold are
	// stored without a vector; most chatter never needs one.
	Importance float64
}

// AddToWorkingMemory stores a conversation turn in short-term memory
// with the configured TTL.
func (c *Coordinator) AddToWorkingMemory(ctx context.Context, p WorkingParams) (string, error) {
	importance := p.Importance
	if importance <= 0 {
		importance = model.DefaultImportance
	}

	return c.store.Store(ctx, store.StoreParams{
		Type:           model.TypeWorking,
		Content:        p.Content,
		Owner:          p.Owner,
		SessionID:      p.SessionID,
		ConversationID: p.ConversationID,
		Importance:     importance,
		SkipEmbedding:  importance < c.cfg.EmbedImportanceMin,
		TTL:            c.cfg.WorkingTTL,
		Metadata:       map[string]any{"role": p.Role},
	})
}

// GetWorkingMemoryContext renders the prompt context for a session:
// the recent transcript tail plus the owner's latest summaries.
func (c *Coordinator) GetWorkingMemoryContext(ctx context.Context, owner, sessionID string) (string, error) {
	pc, err := c.engine.GetContextForPrompt(ctx, retrieval.ContextParams{
		Owner:     owner,
		SessionID: sessionID,
	})
	if err != nil {
		return "", err
	}
	return pc.Format(), nil
}
