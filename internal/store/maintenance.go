package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/engramdb/engram/internal/model"
)

// MarkConsolidated sets the consolidation link only if it is currently
// absent. A single-field compare-and-set: under concurrent promotion or
// consolidation, exactly one caller observes true.
func (s *SQLiteStore) MarkConsolidated(ctx context.Context, id, into string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET consolidated_into = ? WHERE id = ? AND consolidated_into IS NULL`,
		into, id)
	if err != nil {
		return false, fmt.Errorf("mark consolidated: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteExpired removes STM records past their expires_at. The read
// paths already filter expired rows, so this sweep only reclaims space
// and keeps the vector index honest.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(timeLayout)

	var expiredIDs []string
	if s.index != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM memories WHERE tier = ? AND expires_at IS NOT NULL AND expires_at <= ? AND has_embedding = 1`,
			string(model.TierSTM), now)
		if err == nil {
			for rows.Next() {
				var id string
				if rows.Scan(&id) == nil {
					expiredIDs = append(expiredIDs, id)
				}
			}
			rows.Close()
		}
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE tier = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(model.TierSTM), now)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, _ := res.RowsAffected()

	for _, id := range expiredIDs {
		if err := s.index.Remove(ctx, id); err != nil {
			s.log.Warn("vector index remove failed", zap.String("id", id), zap.Error(err))
		}
	}
	return int(n), nil
}

// LTMBatch returns up to limit long-term records, most recent first,
// for decay recomputation.
func (s *SQLiteStore) LTMBatch(ctx context.Context, owner string, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = DefaultBruteForceCap
	}
	where := []string{"tier = ?"}
	args := []any{string(model.TierLTM)}
	where, args = appendOwnerFilter(where, args, owner, true)

	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		append(args, limit)...)
}

// CountConsolidationCandidates counts decayed, unconsolidated episodic
// conversation records. Reporting only; nothing is consolidated here.
func (s *SQLiteStore) CountConsolidationCandidates(ctx context.Context, owner string, cutoff float64) (int, error) {
	where := []string{"tier = ?", "memory_type = ?", "consolidated_into IS NULL", "decay_score < ?"}
	args := []any{string(model.TierLTM), string(model.TypeEpisodicConversation), cutoff}
	where, args = appendOwnerFilter(where, args, owner, true)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE `+strings.Join(where, " AND "),
		args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count consolidation candidates: %w", err)
	}
	return count, nil
}

// GetCacheEntry finds a live semantic-cache record by query hash.
// A miss returns (nil, nil).
func (s *SQLiteStore) GetCacheEntry(ctx context.Context, hash, owner string) (*model.Record, error) {
	where := []string{"memory_type = ?", notExpired, "json_extract(metadata, '$.query_hash') = ?"}
	args := []any{string(model.TypeSemanticCache), time.Now().UTC().Format(timeLayout), hash}
	where, args = appendOwnerFilter(where, args, owner, true)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM memories WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY timestamp DESC LIMIT 1`,
		args...)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return rec, nil
}

// RecordCacheHit bumps the cache entry's hit counter and access
// tracking in one atomic update.
func (s *SQLiteStore) RecordCacheHit(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET
			metadata = json_set(COALESCE(metadata, '{}'), '$.cache_hits',
				COALESCE(json_extract(metadata, '$.cache_hits'), 0) + 1),
			last_accessed = ?,
			access_count = access_count + 1
		 WHERE id = ?`,
		now, id)
	if err != nil {
		return fmt.Errorf("record cache hit: %w", err)
	}
	return nil
}

// FindEntity looks up a shared entity record by case-insensitive name.
// Absence returns (nil, nil).
func (s *SQLiteStore) FindEntity(ctx context.Context, name string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM memories
		 WHERE memory_type = ? AND lower(json_extract(metadata, '$.entity_name')) = lower(?)
		 ORDER BY timestamp DESC LIMIT 1`,
		string(model.TypeSharedEntity), name)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return rec, nil
}
