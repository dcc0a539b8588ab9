package coordinator

import "time"

// decayScore recomputes a record's retention score from its age,
// importance and access history.
//
// Age erodes the score linearly, losing half over a year. Importance
// shields up to half of what remains. The access factor discounts at
// most 30%, one percent per recorded access.
func decayScore(createdAt time.Time, importance float64, accessCount int, now time.Time) float64 {
	ageDays := int(now.Sub(createdAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	baseDecay := clamp01(1.0 - (float64(ageDays)/365.0)*0.5)
	decay := baseDecay * (0.5 + importance*0.5)

	accessFactor := 1.0 - minFloat(float64(accessCount)/100.0, 0.3)
	return clamp01(decay * accessFactor)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
