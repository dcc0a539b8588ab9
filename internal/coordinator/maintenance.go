package coordinator

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// MaintenanceReport summarizes one maintenance run.
type MaintenanceReport struct {
	ExpiredCleaned          int `json:"expired_cleaned"`
	DecayUpdated            int `json:"decay_updated"`
	ConsolidationCandidates int `json:"consolidation_candidates"`
}

// RunMaintenance sweeps expired short-term records, recomputes decay
// scores over a batch of long-term records, and reports how many
// decayed conversations are ready for consolidation. Each step is
// isolated: a failing step is logged and the run continues.
func (c *Coordinator) RunMaintenance(ctx context.Context, owner string) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	cleaned, err := c.store.DeleteExpired(ctx)
	if err != nil {
		c.log.Warn("expiry sweep failed", zap.Error(err))
	} else {
		report.ExpiredCleaned = cleaned
	}

	batch, err := c.store.LTMBatch(ctx, owner, c.cfg.MaintenanceBatch)
	if err != nil {
		c.log.Warn("decay batch fetch failed", zap.Error(err))
	} else {
		now := c.now().UTC()
		for _, rec := range batch {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			fresh := decayScore(rec.CreatedAt, rec.Importance, rec.AccessCount, now)
			if math.Abs(fresh-rec.DecayScore) <= c.cfg.DecayWriteDelta {
				continue
			}
			if _, err := c.store.Update(ctx, rec.ID, map[string]any{"decay_score": fresh}); err != nil {
				c.log.Warn("decay write failed", zap.String("id", rec.ID), zap.Error(err))
				continue
			}
			report.DecayUpdated++
		}
	}

	candidates, err := c.store.CountConsolidationCandidates(ctx, owner, c.cfg.ConsolidationDecayCutoff)
	if err != nil {
		c.log.Warn("candidate count failed", zap.Error(err))
	} else {
		report.ConsolidationCandidates = candidates
	}

	c.log.Info("maintenance complete",
		zap.Int("expired_cleaned", report.ExpiredCleaned),
		zap.Int("decay_updated", report.DecayUpdated),
		zap.Int("consolidation_candidates", report.ConsolidationCandidates))
	return report, nil
}
