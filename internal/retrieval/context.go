package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/engramdb/engram/internal/model"
	"github.com/engramdb/engram/internal/store"
)

// ContextParams selects what goes into a prompt context.
type ContextParams struct {
	Owner     string
	SessionID string
	// MaxWorking caps the working-memory tail (default 20).
	MaxWorking int
	// MaxSummaries caps episodic summaries (default 3).
	MaxSummaries int
}

// PromptContext is the assembled context for an LLM prompt: the most
// recent turns of the session plus the owner's episodic summaries.
type PromptContext struct {
	// Working holds the session tail in chronological order.
	Working []model.Record
	// Summaries holds episodic summaries, newest first.
	Summaries []model.Record
}

// Format renders the context as plain text, one line per record.
func (pc *PromptContext) Format() string {
	var b strings.Builder
	for _, rec := range pc.Working {
		role := "unknown"
		if r, ok := rec.Metadata["role"].(string); ok && r != "" {
			role = r
		}
		fmt.Fprintf(&b, "%s: %s\n", role, rec.Content)
	}
	for _, rec := range pc.Summaries {
		fmt.Fprintf(&b, "Summary: %s\n", rec.Content)
	}
	return b.String()
}

// GetContextForPrompt gathers the latest working-memory records for
// the session and the owner's most recent summaries. The working set
// is the tail of the transcript so a long session still yields the
// current conversation, in order.
func (e *Engine) GetContextForPrompt(ctx context.Context, p ContextParams) (*PromptContext, error) {
	maxWorking := p.MaxWorking
	if maxWorking <= 0 {
		maxWorking = 20
	}
	maxSummaries := p.MaxSummaries
	if maxSummaries <= 0 {
		maxSummaries = 3
	}

	pc := &PromptContext{}

	if p.SessionID != "" {
		working, err := e.store.FindBySession(ctx, store.FindBySessionParams{
			SessionID: p.SessionID,
			Types:     []model.Type{model.TypeWorking},
			Limit:     1000,
		})
		if err != nil {
			return nil, fmt.Errorf("session context: %w", err)
		}
		if len(working) > maxWorking {
			working = working[len(working)-maxWorking:]
		}
		pc.Working = working
	}

	if p.Owner != "" {
		summaries, err := e.store.FindByType(ctx, store.FindByTypeParams{
			Type:          model.TypeEpisodicSummary,
			Owner:         p.Owner,
			Limit:         maxSummaries,
			IncludeShared: true,
		})
		if err != nil {
			return nil, fmt.Errorf("summary context: %w", err)
		}
		pc.Summaries = summaries
	}

	return pc, nil
}
