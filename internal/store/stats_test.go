package store

import (
	"context"
	"testing"
	"time"

	"github.com/engramdb/engram/internal/model"
)

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: "turn one", SessionID: "s1"})
	s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: "turn two", SessionID: "s1"})
	s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "a fact", Importance: 0.9})
	s.Store(ctx, StoreParams{Type: model.TypeEpisodicSummary, Content: "a summary", Importance: 0.7})

	stats, err := s.GetStats(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.STM.Total != 2 {
		t.Errorf("stm total = %d, want 2", stats.STM.Total)
	}
	if stats.LTM.Total != 2 {
		t.Errorf("ltm total = %d, want 2", stats.LTM.Total)
	}

	working := stats.STM.Types[model.TypeWorking]
	if working.Count != 2 {
		t.Errorf("working count = %d", working.Count)
	}
	if working.AvgImportance != model.DefaultImportance {
		t.Errorf("working avg importance = %v", working.AvgImportance)
	}

	knowledge := stats.LTM.Types[model.TypeSemanticKnowledge]
	if knowledge.Count != 1 || knowledge.AvgImportance != 0.9 {
		t.Errorf("knowledge stats = %+v", knowledge)
	}
}

func TestGetStatsSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: "expired", SessionID: "s1", TTL: time.Nanosecond})
	s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: "live", SessionID: "s1"})

	stats, err := s.GetStats(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Errorf("total = %d, want 1 (expired excluded)", stats.Total)
	}
}

func TestGetStatsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "alice fact", Owner: "alice"})
	s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "bob fact", Owner: "bob"})
	s.Store(ctx, StoreParams{Type: model.TypeSharedPersona, Content: "the assistant persona", Shared: true})

	stats, err := s.GetStats(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want alice's plus shared", stats.Total)
	}
}
