package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/engramdb/engram/internal/embedding"
	"github.com/engramdb/engram/internal/index"
	"github.com/engramdb/engram/internal/model"
)

// timeLayout is RFC3339 with fixed-width nanoseconds so stored strings
// sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultBruteForceCap bounds the fallback vector scan when no ANN
// index is configured. A deliberate accuracy/cost tradeoff: only the
// most recent capped candidates are scored.
const DefaultBruteForceCap = 500

// DefaultSTMTTL is applied when an STM record is stored without an
// explicit TTL, so every STM record carries expires_at from creation.
const DefaultSTMTTL = 8 * time.Hour

// Options configures a SQLiteStore. All fields are optional.
type Options struct {
	// Embedder generates content vectors at store time. Nil disables
	// embedding; records are stored without vectors.
	Embedder embedding.Embedder

	// Index is an ANN vector index kept in sync with embedded records.
	// Nil selects the bounded brute-force scan.
	Index index.VectorIndex

	// BruteForceCap overrides DefaultBruteForceCap when positive.
	BruteForceCap int

	// DefaultTTL overrides DefaultSTMTTL when positive.
	DefaultTTL time.Duration

	Logger *zap.Logger
}

// SQLiteStore implements Store using SQLite with an FTS5 lexical index.
type SQLiteStore struct {
	db       *sql.DB
	embedder embedding.Embedder
	index    index.VectorIndex
	scanCap  int
	stmTTL   time.Duration
	log      *zap.Logger
	entropy  *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scanCap := opts.BruteForceCap
	if scanCap <= 0 {
		scanCap = DefaultBruteForceCap
	}
	stmTTL := opts.DefaultTTL
	if stmTTL <= 0 {
		stmTTL = DefaultSTMTTL
	}

	s := &SQLiteStore{
		db:       db,
		embedder: opts.Embedder,
		index:    opts.Index,
		scanCap:  scanCap,
		stmTTL:   stmTTL,
		log:      logger,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		tier             TEXT NOT NULL,
		memory_type      TEXT NOT NULL,
		owner            TEXT,
		is_shared        INTEGER NOT NULL DEFAULT 0,
		content          TEXT NOT NULL,
		embedding        BLOB,
		has_embedding    INTEGER NOT NULL DEFAULT 0,
		session_id       TEXT,
		conversation_id  TEXT,
		timestamp        TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		last_accessed    TEXT,
		expires_at       TEXT,
		importance_score REAL NOT NULL DEFAULT 0.5,
		decay_score      REAL NOT NULL DEFAULT 1.0,
		access_count     INTEGER NOT NULL DEFAULT 0,
		promoted_from    TEXT,
		consolidated_into TEXT,
		metadata         TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_tier_type_time ON memories(tier, memory_type, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_type_time ON memories(owner, memory_type, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_session_time ON memories(session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);
	CREATE INDEX IF NOT EXISTS idx_memories_embedded ON memories(has_embedding, timestamp DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content,
		content=memories,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END`)
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	END`)
	s.db.Exec(`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE OF content ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END`)

	return nil
}

const recordColumns = `id, tier, memory_type, owner, is_shared, content, embedding, has_embedding,
	session_id, conversation_id, timestamp, created_at, last_accessed, expires_at,
	importance_score, decay_score, access_count, promoted_from, consolidated_into, metadata`

func (s *SQLiteStore) Store(ctx context.Context, p StoreParams) (string, error) {
	if strings.TrimSpace(p.Content) == "" {
		return "", ErrEmptyContent
	}
	if !model.ValidTypes[p.Type] {
		return "", fmt.Errorf("invalid memory type %q", p.Type)
	}

	now := time.Now().UTC()
	id := s.newID()
	tier := model.TierOf(p.Type)

	importance := p.Importance
	if importance == 0 {
		importance = model.DefaultImportance
	}

	var expiresAt *string
	if tier == model.TierSTM {
		ttl := p.TTL
		if ttl <= 0 {
			ttl = s.stmTTL
		}
		exp := now.Add(ttl).Format(timeLayout)
		expiresAt = &exp
	}

	var vec []float32
	if !p.SkipEmbedding && s.embedder != nil {
		v, err := s.embedder.Embed(ctx, p.Content)
		if err != nil {
			// Non-fatal: keep the record without a vector.
			s.log.Warn("embedding failed, storing without vector",
				zap.String("id", id), zap.Error(err))
		} else {
			vec = v
		}
	}

	var metaJSON *string
	if len(p.Metadata) > 0 {
		b, err := json.Marshal(p.Metadata)
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
		js := string(b)
		metaJSON = &js
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, tier, memory_type, owner, is_shared, content, embedding, has_embedding,
			session_id, conversation_id, timestamp, created_at, expires_at,
			importance_score, decay_score, access_count, promoted_from, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, string(tier), string(p.Type), nullStr(p.Owner), boolInt(p.Shared),
		p.Content, encodeVector(vec), boolInt(len(vec) > 0),
		nullStr(p.SessionID), nullStr(p.ConversationID),
		now.Format(timeLayout), now.Format(timeLayout), expiresAt,
		importance, model.DefaultDecay, nullStr(p.PromotedFrom), metaJSON)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}

	if len(vec) > 0 && s.index != nil {
		if err := s.index.Add(ctx, id, vec); err != nil {
			s.log.Warn("vector index add failed", zap.String("id", id), zap.Error(err))
		}
	}

	s.log.Debug("stored memory", zap.String("id", id), zap.String("type", string(p.Type)))
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Record, error) {
	rec, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
		now, id)
	if err != nil {
		s.log.Warn("access tracking failed", zap.String("id", id), zap.Error(err))
	}

	return rec, nil
}

// getByID fetches a record without touching access tracking.
func (s *SQLiteStore) getByID(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM memories
		 WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		id, time.Now().UTC().Format(timeLayout))

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return rec, nil
}

// updatable maps accepted Update keys to columns. Immutable fields and
// store-managed counters are absent on purpose.
var updatable = map[string]string{
	"content":           "content",
	"owner":             "owner",
	"shared":            "is_shared",
	"session_id":        "session_id",
	"conversation_id":   "conversation_id",
	"timestamp":         "timestamp",
	"last_accessed":     "last_accessed",
	"expires_at":        "expires_at",
	"importance_score":  "importance_score",
	"decay_score":       "decay_score",
	"consolidated_into": "consolidated_into",
	"metadata":          "metadata",
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	var sets []string
	var args []any

	for key, val := range fields {
		col, ok := updatable[key]
		if !ok {
			continue
		}
		v, err := toSQLValue(val)
		if err != nil {
			return false, fmt.Errorf("update field %s: %w", key, err)
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 && s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.log.Warn("vector index remove failed", zap.String("id", id), zap.Error(err))
		}
	}
	return n > 0, nil
}

func (s *SQLiteStore) FindByType(ctx context.Context, p FindByTypeParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"memory_type = ?", notExpired}
	args := []any{string(p.Type), time.Now().UTC().Format(timeLayout)}
	where, args = appendOwnerFilter(where, args, p.Owner, p.IncludeShared)

	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		append(args, limit)...)
}

func (s *SQLiteStore) FindBySession(ctx context.Context, p FindBySessionParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	where := []string{"session_id = ?", notExpired}
	args := []any{p.SessionID, time.Now().UTC().Format(timeLayout)}
	if len(p.Types) > 0 {
		where = append(where, "memory_type IN ("+placeholders(len(p.Types))+")")
		for _, t := range p.Types {
			args = append(args, string(t))
		}
	}

	// Chronological, oldest first, to reconstruct the transcript.
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp ASC, id ASC LIMIT ?`,
		append(args, limit)...)
}

func (s *SQLiteStore) FindByUser(ctx context.Context, p FindByUserParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	where := []string{notExpired}
	args := []any{time.Now().UTC().Format(timeLayout)}
	where, args = appendOwnerFilter(where, args, p.Owner, p.IncludeShared)
	if p.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(p.Tier))
	}

	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		append(args, limit)...)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// notExpired filters rows past their TTL; takes one now-string arg.
const notExpired = "(expires_at IS NULL OR expires_at > ?)"

func appendOwnerFilter(where []string, args []any, owner string, includeShared bool) ([]string, []any) {
	if owner == "" {
		return where, args
	}
	if includeShared {
		where = append(where, "(owner = ? OR is_shared = 1)")
	} else {
		where = append(where, "owner = ?")
	}
	return where, append(args, owner)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.Record, error) {
	var r model.Record
	var owner, sessionID, conversationID, lastAccessed, expiresAt, promotedFrom, consolidatedInto, metaJSON sql.NullString
	var timestamp, createdAt string
	var shared, hasEmbedding int
	var embedding []byte

	err := row.Scan(
		&r.ID, &r.Tier, &r.Type, &owner, &shared, &r.Content, &embedding, &hasEmbedding,
		&sessionID, &conversationID, &timestamp, &createdAt, &lastAccessed, &expiresAt,
		&r.Importance, &r.DecayScore, &r.AccessCount, &promotedFrom, &consolidatedInto, &metaJSON,
	)
	if err != nil {
		return nil, err
	}
	fillRecord(&r, owner, shared, embedding, hasEmbedding, sessionID, conversationID,
		timestamp, createdAt, lastAccessed, expiresAt, promotedFrom, consolidatedInto, metaJSON)
	return &r, nil
}

func fillRecord(r *model.Record, owner sql.NullString, shared int, emb []byte, hasEmbedding int,
	sessionID, conversationID sql.NullString, timestamp, createdAt string,
	lastAccessed, expiresAt, promotedFrom, consolidatedInto, metaJSON sql.NullString) {

	r.Owner = owner.String
	r.Shared = shared != 0
	r.HasEmbedding = hasEmbedding != 0
	r.Embedding = decodeVector(emb)
	r.SessionID = sessionID.String
	r.ConversationID = conversationID.String
	r.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastAccessed.String)
		r.LastAccessed = &t
	}
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, expiresAt.String)
		r.ExpiresAt = &t
	}
	r.PromotedFrom = promotedFrom.String
	r.ConsolidatedInto = consolidatedInto.String
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
}

func toSQLValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, int, int64, float64:
		return val, nil
	case bool:
		return boolInt(val), nil
	case time.Time:
		return val.UTC().Format(timeLayout), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return val.UTC().Format(timeLayout), nil
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeVector packs a float32 vector as little-endian bytes for BLOB
// storage. Returns nil for an empty vector.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
