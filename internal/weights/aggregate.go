package weights

import (
	"fmt"
	"math"
)

const (
	StanceBullish = "Bullish"
	StanceNeutral = "Neutral"
	StanceBearish = "Bearish"
)

// Aggregate computes the weighted pulse score. Scores for categories that
// are not in w are ignored; weighted categories without a score count as 0.
// A set that sums to zero yields 0.
func Aggregate(scores map[string]float64, w Set) float64 {
	if math.Abs(w.Sum()) < 1e-9 {
		return 0
	}
	var total float64
	for _, name := range w.Names() {
		total += scores[name] * w[name]
	}
	return total / Total
}

// Stance classifies a 0-100 pulse score. 30 itself is Neutral.
func Stance(score float64) string {
	switch {
	case score >= 60:
		return StanceBullish
	case score < 30:
		return StanceBearish
	default:
		return StanceNeutral
	}
}

// ScaleScore maps a raw sentiment value from [lo, hi] onto [0, 100],
// clamped and rounded to one decimal.
func ScaleScore(raw, lo, hi float64) (float64, error) {
	if hi <= lo {
		return 0, fmt.Errorf("invalid score range [%v, %v]", lo, hi)
	}
	v := (raw - lo) / (hi - lo) * Total
	return math.Round(clamp(v, 0, Total)*10) / 10, nil
}
