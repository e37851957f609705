// Package analytics implements the herd performance analytics engine: growth
// curve scoring, trend detection, cohort classification, monthly rollups and
// lifecycle transition candidates.
//
// Every function is a pure transform of its arguments. Nothing here performs
// I/O or keeps state between calls, so results may be cached by callers keyed
// on their inputs.
package analytics

// Default engine thresholds.
const (
	DefaultTrendMargin         = 0.15
	DefaultClassificationBand  = 0.4
	DefaultDegenerateStdDev    = 0.1
	DefaultCloseTolerance      = 0.10
	DefaultTargetLactationDays = 305
	DefaultDryOffWindowStart   = 35
	DefaultDryOffWindowEnd     = 5
	DefaultDeclineRun          = 4
)

// persistenceReferenceDEL is the days-in-milk at which persistence weighting is neutral.
const persistenceReferenceDEL = 50.0

// Thresholds carries the numeric policy of the engine. Callers obtain a
// populated value from DefaultThresholds and override what their
// configuration supplies.
type Thresholds struct {
	// TrendMargin is the absolute kg change a delta must exceed to count as up or down.
	// Comparisons allow 1e-9 kg of float noise, so a delta must exceed
	// TrendMargin+1e-9; margins near that size are effectively widened.
	TrendMargin float64 `json:"trend_margin" yaml:"trend_margin"`
	// ClassificationBand is the number of standard deviations around the mean classified Average.
	ClassificationBand float64 `json:"classification_band" yaml:"classification_band"`
	// DegenerateStdDev is the σ at or below which a cohort is treated as uniform.
	DegenerateStdDev float64 `json:"degenerate_std_dev" yaml:"degenerate_std_dev"`
	// CloseTolerance is the fraction below target still reported as close.
	CloseTolerance float64 `json:"close_tolerance" yaml:"close_tolerance"`
	// TargetLactationDays is the planned lactation length used by the dry-off window.
	TargetLactationDays int `json:"target_lactation_days" yaml:"target_lactation_days"`
	// DryOffWindowStart and DryOffWindowEnd are offsets subtracted from TargetLactationDays.
	DryOffWindowStart int `json:"dry_off_window_start" yaml:"dry_off_window_start"`
	DryOffWindowEnd   int `json:"dry_off_window_end" yaml:"dry_off_window_end"`
	// DeclineRun is the number of recent milk events that must strictly decrease.
	DeclineRun int `json:"decline_run" yaml:"decline_run"`
}

// DefaultThresholds returns the reference-domain policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendMargin:         DefaultTrendMargin,
		ClassificationBand:  DefaultClassificationBand,
		DegenerateStdDev:    DefaultDegenerateStdDev,
		CloseTolerance:      DefaultCloseTolerance,
		TargetLactationDays: DefaultTargetLactationDays,
		DryOffWindowStart:   DefaultDryOffWindowStart,
		DryOffWindowEnd:     DefaultDryOffWindowEnd,
		DeclineRun:          DefaultDeclineRun,
	}
}

// DryOffWindow returns the inclusive DEL range of the dry-off rule.
func (t Thresholds) DryOffWindow() (lo, hi int) {
	return t.TargetLactationDays - t.DryOffWindowStart, t.TargetLactationDays - t.DryOffWindowEnd
}
