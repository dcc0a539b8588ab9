package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/engramdb/engram/internal/embedding"
	"github.com/engramdb/engram/internal/model"
)

func newTestStore(t *testing.T, opts Options) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), opts)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// stubEmbedder maps known content to fixed vectors.
type stubEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Dims() int { return 3 }

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	id, err := s.Store(ctx, StoreParams{
		Type:      model.TypeWorking,
		Content:   "What's for dinner?",
		Owner:     "alice",
		SessionID: "s1",
		Metadata:  map[string]any{"role": "user"},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "What's for dinner?" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Type != model.TypeWorking || got.Tier != model.TierSTM {
		t.Errorf("type %s tier %s", got.Type, got.Tier)
	}
	if got.Owner != "alice" {
		t.Errorf("owner = %q", got.Owner)
	}
	if role, _ := got.Metadata["role"].(string); role != "user" {
		t.Errorf("metadata role = %v", got.Metadata["role"])
	}
	if got.ExpiresAt == nil {
		t.Error("short-term record needs an expiry")
	}
	if got.Importance != model.DefaultImportance {
		t.Errorf("importance = %v", got.Importance)
	}
	if got.DecayScore != model.DefaultDecay {
		t.Errorf("decay = %v", got.DecayScore)
	}

	// Access tracking: second get observes the first get's bump.
	got2, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got2.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got2.AccessCount)
	}
	if got2.LastAccessed == nil {
		t.Error("last_accessed not set")
	}
}

func TestStoreEmptyContent(t *testing.T) {
	s := newTestStore(t, Options{})
	if _, err := s.Store(context.Background(), StoreParams{Type: model.TypeWorking, Content: "   "}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("got %v, want ErrEmptyContent", err)
	}
}

func TestStoreInvalidType(t *testing.T) {
	s := newTestStore(t, Options{})
	if _, err := s.Store(context.Background(), StoreParams{Type: "daydream", Content: "x"}); err == nil {
		t.Error("expected error for unknown memory type")
	}
}

func TestStoreLongTermHasNoExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	id, err := s.Store(ctx, StoreParams{
		Type:    model.TypeSemanticKnowledge,
		Content: "Cats sleep 16 hours a day",
		TTL:     time.Hour, // ignored outside STM
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != model.TierLTM {
		t.Errorf("tier = %s", got.Tier)
	}
	if got.ExpiresAt != nil {
		t.Error("long-term record must not expire")
	}
}

func TestExpiredRecordInvisible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	id, err := s.Store(ctx, StoreParams{
		Type:      model.TypeWorking,
		Content:   "gone in a flash",
		SessionID: "s1",
		TTL:       time.Nanosecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("get expired: got %v, want ErrNotFound", err)
	}

	recs, err := s.FindBySession(ctx, FindBySessionParams{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("expired record surfaced in session scan: %d", len(recs))
	}
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, Options{})
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateDropsImmutableFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	id, _ := s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "v1"})

	// Only immutable fields: nothing to write.
	ok, err := s.Update(ctx, id, map[string]any{"id": "hijack", "memory_type": "working", "created_at": time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("update of immutable fields must report false")
	}

	// Mixed: the mutable field lands, the immutable one is dropped.
	ok, err = s.Update(ctx, id, map[string]any{"content": "v2", "tier": "stm"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("update reported no match")
	}

	got, _ := s.Get(ctx, id)
	if got.Content != "v2" {
		t.Errorf("content = %q, want v2", got.Content)
	}
	if got.Tier != model.TierLTM {
		t.Errorf("tier changed to %s", got.Tier)
	}
}

func TestUpdateNoMatch(t *testing.T) {
	s := newTestStore(t, Options{})
	ok, err := s.Update(context.Background(), "missing", map[string]any{"content": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected false for unknown id")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	id, _ := s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "temp"})

	ok, err := s.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v after delete, want ErrNotFound", err)
	}

	ok, err = s.Delete(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second delete must report false")
	}
}

func TestFindByTypeMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: content, Owner: "alice"}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.FindByType(ctx, FindByTypeParams{Type: model.TypeSemanticKnowledge, Owner: "alice", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Content != "third" || recs[1].Content != "second" {
		t.Errorf("order = %q, %q", recs[0].Content, recs[1].Content)
	}
}

func TestFindBySessionChronological(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	for _, content := range []string{"Hello", "How are you", "Bye"} {
		if _, err := s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: content, SessionID: "s1"}); err != nil {
			t.Fatal(err)
		}
	}
	// Another session stays out.
	s.Store(ctx, StoreParams{Type: model.TypeWorking, Content: "other", SessionID: "s2"})

	recs, err := s.FindBySession(ctx, FindBySessionParams{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Content != "Hello" || recs[2].Content != "Bye" {
		t.Errorf("order = %q .. %q, want oldest first", recs[0].Content, recs[2].Content)
	}
}

func TestFindByUserSharedVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})

	s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "alice fact", Owner: "alice"})
	s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "bob fact", Owner: "bob"})
	s.Store(ctx, StoreParams{Type: model.TypeSharedEntity, Content: "family dog", Shared: true})

	recs, err := s.FindByUser(ctx, FindByUserParams{Owner: "alice", IncludeShared: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want alice's plus shared", len(recs))
	}

	recs, err = s.FindByUser(ctx, FindByUserParams{Owner: "alice", IncludeShared: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Content != "alice fact" {
		t.Errorf("without shared: %d records", len(recs))
	}
}

func TestEmbeddingFailureNonFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{Embedder: &stubEmbedder{err: embedding.ErrUnavailable}})

	id, err := s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "still stored"})
	if err != nil {
		t.Fatalf("store with failing embedder: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasEmbedding {
		t.Error("record should have no embedding after provider failure")
	}
}

func TestEmbeddingStored(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{Embedder: &stubEmbedder{vecs: map[string][]float32{"hi": {0.1, 0.2, 0.3}}}})

	id, err := s.Store(ctx, StoreParams{Type: model.TypeSemanticKnowledge, Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasEmbedding || len(got.Embedding) != 3 {
		t.Errorf("embedding not round-tripped: has=%v len=%d", got.HasEmbedding, len(got.Embedding))
	}
	if got.Embedding[2] != 0.3 {
		t.Errorf("embedding[2] = %v", got.Embedding[2])
	}
}
