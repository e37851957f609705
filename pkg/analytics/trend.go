package analytics

import (
	"math"

	"herdcore/pkg/domain"
)

// TrendDirection classifies the latest movement of a subject's measurements.
type TrendDirection string

// Trend directions. Single and None flag insufficient history.
const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
	TrendSingle TrendDirection = "single"
	TrendNone   TrendDirection = "none"
)

// TrendResult carries the classification together with the two most recent
// events it was derived from.
type TrendResult struct {
	Direction TrendDirection           `json:"direction"`
	LongTrend bool                     `json:"long_trend"`
	Delta     *float64                 `json:"delta,omitempty"`
	Latest    *domain.MeasurementEvent `json:"latest,omitempty"`
	Previous  *domain.MeasurementEvent `json:"previous,omitempty"`
}

// DetectTrend classifies a subject's history by comparing its two most recent
// events. A delta must be strictly beyond ±margin to count as up or down.
func DetectTrend(history []domain.MeasurementEvent, margin float64) TrendResult {
	ordered := sortedByDate(history)
	switch len(ordered) {
	case 0:
		return TrendResult{Direction: TrendNone}
	case 1:
		latest := ordered[0]
		return TrendResult{Direction: TrendSingle, Latest: &latest}
	}
	latest := ordered[len(ordered)-1]
	previous := ordered[len(ordered)-2]
	delta := latest.Kg - previous.Kg
	return TrendResult{
		Direction: direction(delta, margin),
		LongTrend: IsLongTrend(ordered, margin),
		Delta:     &delta,
		Latest:    &latest,
		Previous:  &previous,
	}
}

// IsLongTrend reports whether the two most recent deltas both move beyond the
// margin in the same direction. Fewer than three events never form a long trend.
func IsLongTrend(history []domain.MeasurementEvent, margin float64) bool {
	ordered := sortedByDate(history)
	n := len(ordered)
	if n < 3 {
		return false
	}
	recent := direction(ordered[n-1].Kg-ordered[n-2].Kg, margin)
	earlier := direction(ordered[n-2].Kg-ordered[n-3].Kg, margin)
	return recent == earlier && (recent == TrendUp || recent == TrendDown)
}

// deltaEpsilon absorbs float noise so that a delta equal to the margin in
// decimal terms (10.15 − 10.00) stays stable.
const deltaEpsilon = 1e-9

func direction(delta, margin float64) TrendDirection {
	m := math.Abs(margin) + deltaEpsilon
	switch {
	case delta > m:
		return TrendUp
	case delta < -m:
		return TrendDown
	default:
		return TrendStable
	}
}
