package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engramdb/engram/internal/embedding"
	"github.com/engramdb/engram/internal/model"
)

// TextSearch runs the query against the FTS5 index. Relevance is the
// negated bm25 rank, so higher is better. Terms are OR'd, matching the
// loose semantics of a document store's text index.
func (s *SQLiteStore) TextSearch(ctx context.Context, p TextSearchParams) ([]ScoredRecord, error) {
	match := ftsMatchExpr(p.Query)
	if match == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	// Unqualified columns resolve to memories; the FTS table only has
	// the content column.
	where := []string{"memories_fts MATCH ?", notExpired, "consolidated_into IS NULL"}
	args := []any{match, time.Now().UTC().Format(timeLayout)}
	where, args = appendSearchFilters(where, args, p.Owner, p.Types, p.Tier)

	query := fmt.Sprintf(`
		SELECT %s, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE %s
		ORDER BY rank LIMIT ?`,
		prefixColumns("m"), strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var results []ScoredRecord
	for rows.Next() {
		rec, rank, err := scanScored(rows)
		if err != nil {
			return nil, err
		}
		// bm25 ranks better matches lower (negative); flip the sign.
		results = append(results, ScoredRecord{Record: *rec, Score: -rank})
	}
	return results, rows.Err()
}

// SearchByVector finds the nearest embedded records by cosine
// similarity. With a configured ANN index it queries the index and
// hydrates the hits; otherwise it scans the most recent scanCap
// embedded rows and scores them directly.
func (s *SQLiteStore) SearchByVector(ctx context.Context, p VectorSearchParams) ([]ScoredRecord, error) {
	if len(p.Vector) == 0 {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	if s.index != nil {
		results, err := s.indexSearch(ctx, p, limit)
		if err == nil {
			return results, nil
		}
		s.log.Warn("vector index query failed, falling back to scan", zap.Error(err))
	}
	return s.bruteForceSearch(ctx, p, limit)
}

func (s *SQLiteStore) indexSearch(ctx context.Context, p VectorSearchParams, limit int) ([]ScoredRecord, error) {
	// Over-fetch: post-filtering on owner/type/tier drops candidates.
	hits, err := s.index.Query(ctx, p.Vector, limit*2)
	if err != nil {
		return nil, err
	}

	var results []ScoredRecord
	for _, h := range hits {
		if float64(h.Similarity) < p.MinScore {
			continue
		}
		rec, err := s.getByID(ctx, h.ID)
		if err != nil {
			continue // expired or deleted since indexing
		}
		if !matchesFilters(rec, p.Owner, p.Types, p.Tier) || rec.Superseded() {
			continue
		}
		results = append(results, ScoredRecord{Record: *rec, Score: float64(h.Similarity)})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (s *SQLiteStore) bruteForceSearch(ctx context.Context, p VectorSearchParams, limit int) ([]ScoredRecord, error) {
	where := []string{"has_embedding = 1", "consolidated_into IS NULL", notExpired}
	args := []any{time.Now().UTC().Format(timeLayout)}
	where, args = appendSearchFilters(where, args, p.Owner, p.Types, p.Tier)

	candidates, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		append(args, s.scanCap)...)
	if err != nil {
		return nil, err
	}

	var results []ScoredRecord
	for _, rec := range candidates {
		score := embedding.CosineSimilarity(p.Vector, rec.Embedding)
		if score >= p.MinScore {
			results = append(results, ScoredRecord{Record: rec, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func appendSearchFilters(where []string, args []any, owner string, types []model.Type, tier model.Tier) ([]string, []any) {
	if owner != "" {
		where = append(where, "(owner = ? OR is_shared = 1)")
		args = append(args, owner)
	}
	if len(types) > 0 {
		where = append(where, "memory_type IN ("+placeholders(len(types))+")")
		for _, t := range types {
			args = append(args, string(t))
		}
	} else {
		// Cache entries are routing bookkeeping, not memories to recall.
		where = append(where, "memory_type != ?")
		args = append(args, string(model.TypeSemanticCache))
	}
	if tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(tier))
	}
	return where, args
}

func matchesFilters(rec *model.Record, owner string, types []model.Type, tier model.Tier) bool {
	if owner != "" && rec.Owner != owner && !rec.Shared {
		return false
	}
	if tier != "" && rec.Tier != tier {
		return false
	}
	if len(types) == 0 {
		return rec.Type != model.TypeSemanticCache
	}
	for _, t := range types {
		if rec.Type == t {
			return true
		}
	}
	return false
}

// ftsMatchExpr turns free text into a safe FTS5 match expression:
// each term double-quoted, terms OR'd.
func ftsMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

func prefixColumns(alias string) string {
	cols := strings.Split(recordColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanScored(row scanner) (*model.Record, float64, error) {
	var r model.Record
	var owner, sessionID, conversationID, lastAccessed, expiresAt, promotedFrom, consolidatedInto, metaJSON sql.NullString
	var timestamp, createdAt string
	var shared, hasEmbedding int
	var emb []byte
	var rank float64

	err := row.Scan(
		&r.ID, &r.Tier, &r.Type, &owner, &shared, &r.Content, &emb, &hasEmbedding,
		&sessionID, &conversationID, &timestamp, &createdAt, &lastAccessed, &expiresAt,
		&r.Importance, &r.DecayScore, &r.AccessCount, &promotedFrom, &consolidatedInto, &metaJSON,
		&rank,
	)
	if err != nil {
		return nil, 0, err
	}
	fillRecord(&r, owner, shared, emb, hasEmbedding, sessionID, conversationID,
		timestamp, createdAt, lastAccessed, expiresAt, promotedFrom, consolidatedInto, metaJSON)
	return &r, rank, nil
}
