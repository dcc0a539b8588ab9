package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engramdb/engram/internal/model"
)

// GetStats returns counts and average scores grouped by tier and type.
func (s *SQLiteStore) GetStats(ctx context.Context, owner string) (*Stats, error) {
	where := []string{notExpired}
	args := []any{time.Now().UTC().Format(timeLayout)}
	where, args = appendOwnerFilter(where, args, owner, true)

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, memory_type, COUNT(*) AS cnt,
		       AVG(importance_score) AS avg_importance,
		       AVG(decay_score) AS avg_decay
		FROM memories
		WHERE `+strings.Join(where, " AND ")+`
		GROUP BY tier, memory_type
		ORDER BY cnt DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	stats := &Stats{
		STM: TierStats{Types: map[model.Type]TypeStats{}},
		LTM: TierStats{Types: map[model.Type]TypeStats{}},
	}

	for rows.Next() {
		var tier, mtype string
		var ts TypeStats
		if err := rows.Scan(&tier, &mtype, &ts.Count, &ts.AvgImportance, &ts.AvgDecay); err != nil {
			return nil, err
		}

		switch model.Tier(tier) {
		case model.TierSTM:
			stats.STM.Total += ts.Count
			stats.STM.Types[model.Type(mtype)] = ts
		case model.TierLTM:
			stats.LTM.Total += ts.Count
			stats.LTM.Types[model.Type(mtype)] = ts
		}
		stats.Total += ts.Count
	}

	return stats, rows.Err()
}
