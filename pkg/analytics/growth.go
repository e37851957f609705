package analytics

import (
	"sort"
	"time"

	"herdcore/pkg/domain"
)

// GrowthPoint is a body weight observed at an age in days.
type GrowthPoint struct {
	AgeDays int     `json:"age_days"`
	Kg      float64 `json:"kg"`
}

// MilestoneStatus classifies actual growth against a milestone target.
type MilestoneStatus string

// Milestone statuses, best first.
const (
	MilestoneMet     MilestoneStatus = "met"
	MilestoneClose   MilestoneStatus = "close"
	MilestonePending MilestoneStatus = "pending"
	MilestoneMissed  MilestoneStatus = "missed"
	MilestoneNoData  MilestoneStatus = "no_data"
)

// points awarded per status by GrowthScore; ordering met > close > pending > missed > no_data.
var milestonePoints = map[MilestoneStatus]float64{
	MilestoneMet:     1,
	MilestoneClose:   0.6,
	MilestonePending: 0.5,
	MilestoneMissed:  0.2,
	MilestoneNoData:  0,
}

// MilestoneResult is the evaluation of one configured milestone.
type MilestoneResult struct {
	Name     domain.MilestoneName `json:"name"`
	AgeDays  int                  `json:"age_days"`
	TargetKg float64              `json:"target_kg"`
	ActualKg *float64             `json:"actual_kg,omitempty"`
	Status   MilestoneStatus      `json:"status"`
}

// GrowthProfile summarises a subject's growth as of a date.
type GrowthProfile struct {
	SubjectID     string            `json:"subject_id"`
	AgeDays       int               `json:"age_days"`
	CurrentKg     *float64          `json:"current_kg,omitempty"`
	TargetTodayKg float64           `json:"target_today_kg"`
	Milestones    []MilestoneResult `json:"milestones"`
	Score         *float64          `json:"score,omitempty"`
	DailyGainKg   *float64          `json:"daily_gain_kg,omitempty"`
}

// AgeInDays returns the calendar days between birth and asOf. An unknown
// birth date yields 0, as does an asOf before birth.
func AgeInDays(birth *time.Time, asOf time.Time) int {
	if birth == nil || birth.IsZero() {
		return 0
	}
	days := domain.DaysBetween(*birth, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// GrowthSeries converts a subject's weighings into age-ordered points,
// including the implicit (0, birth weight) point when birth weight is known.
// A subject without a birth date has no resolvable ages and yields nil. When
// several weighings share an age the latest one wins.
func GrowthSeries(subject domain.Subject, weighings []domain.MeasurementEvent) []GrowthPoint {
	if subject.BirthDate == nil {
		return nil
	}
	ordered := sortedByDate(weighings)
	byAge := make(map[int]float64, len(ordered)+1)
	if subject.BirthWeightKg != nil {
		byAge[0] = *subject.BirthWeightKg
	}
	for _, w := range ordered {
		if w.Category != "" && w.Category != domain.CategoryBodyWeight {
			continue
		}
		if w.Date.Before(*subject.BirthDate) {
			continue
		}
		byAge[AgeInDays(subject.BirthDate, w.Date)] = w.Kg
	}
	points := make([]GrowthPoint, 0, len(byAge))
	for age, kg := range byAge {
		points = append(points, GrowthPoint{AgeDays: age, Kg: kg})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].AgeDays < points[j].AgeDays })
	return points
}

// InterpolatedWeightAtAge evaluates the piecewise-linear curve through points
// at targetAge. Ages outside the observed range clamp to the nearest endpoint.
// It reports false when there are no points.
func InterpolatedWeightAtAge(points []GrowthPoint, targetAge int) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].AgeDays < points[j].AgeDays }) {
		cp := make([]GrowthPoint, len(points))
		copy(cp, points)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].AgeDays < cp[j].AgeDays })
		points = cp
	}
	first, last := points[0], points[len(points)-1]
	if targetAge <= first.AgeDays {
		return first.Kg, true
	}
	if targetAge >= last.AgeDays {
		return last.Kg, true
	}
	for i := 1; i < len(points); i++ {
		hi := points[i]
		if targetAge > hi.AgeDays {
			continue
		}
		lo := points[i-1]
		if hi.AgeDays == lo.AgeDays {
			return hi.Kg, true
		}
		frac := float64(targetAge-lo.AgeDays) / float64(hi.AgeDays-lo.AgeDays)
		return lo.Kg + frac*(hi.Kg-lo.Kg), true
	}
	return last.Kg, true
}

// TargetWeightAtAge evaluates the configured target curve for the sex at age.
// An empty curve yields 0.
func TargetWeightAtAge(age int, sex domain.Sex, cfg domain.GrowthTargetConfig) float64 {
	curve := cfg.CurveFor(sex)
	points := make([]GrowthPoint, 0, len(curve))
	for _, m := range curve {
		points = append(points, GrowthPoint{AgeDays: m.AgeDays, Kg: m.TargetKg})
	}
	kg, _ := InterpolatedWeightAtAge(points, age)
	return kg
}

// ClassifyMilestone compares an actual weight with a milestone target.
// A milestone whose age has not been reached is pending; otherwise a missing
// actual is no_data, meeting the target is met, and falling short by no more
// than tolerance (a fraction of target) is close.
func ClassifyMilestone(actual *float64, target float64, milestoneAge, currentAge int, tolerance float64) MilestoneStatus {
	if milestoneAge > currentAge {
		return MilestonePending
	}
	if actual == nil {
		return MilestoneNoData
	}
	switch {
	case *actual >= target:
		return MilestoneMet
	case *actual >= target*(1-tolerance):
		return MilestoneClose
	default:
		return MilestoneMissed
	}
}

// MilestoneReport evaluates every configured milestone for the subject as of
// asOf. The actual weight at a reached milestone comes from
// InterpolatedWeightAtAge, so ages outside the weighed range take the nearest
// known weight. A subject without a birth date or without any points reports
// no_data for every reached milestone.
func MilestoneReport(subject domain.Subject, weighings []domain.MeasurementEvent, cfg domain.GrowthTargetConfig, asOf time.Time, tolerance float64) []MilestoneResult {
	curve := cfg.CurveFor(subject.Sex)
	out := make([]MilestoneResult, 0, len(curve))
	if subject.BirthDate == nil {
		for _, m := range curve {
			out = append(out, MilestoneResult{Name: m.Name, AgeDays: m.AgeDays, TargetKg: m.TargetKg, Status: MilestoneNoData})
		}
		return out
	}
	currentAge := AgeInDays(subject.BirthDate, asOf)
	points := GrowthSeries(subject, weighings)
	for _, m := range curve {
		res := MilestoneResult{Name: m.Name, AgeDays: m.AgeDays, TargetKg: m.TargetKg}
		if m.AgeDays <= currentAge {
			if kg, ok := InterpolatedWeightAtAge(points, m.AgeDays); ok {
				res.ActualKg = &kg
			}
		}
		res.Status = ClassifyMilestone(res.ActualKg, m.TargetKg, m.AgeDays, currentAge, tolerance)
		out = append(out, res)
	}
	return out
}

// GrowthScore combines the weight gap to today's target with the milestone
// statuses into a 0–10 score.
//
// The gap g = (current − target)/target is clamped to ±0.5 and earns
// 5·(g+0.5) points. Milestones earn 5 × the mean of their status points
// (met 1, close 0.6, pending 0.5, missed 0.2, no_data 0), or a neutral 2.5
// when none are supplied. The score is continuous in the gap and never rises
// when a status worsens.
func GrowthScore(currentWeight, targetToday float64, statuses []MilestoneStatus) float64 {
	gap := 0.0
	if targetToday > 0 {
		gap = clamp((currentWeight-targetToday)/targetToday, -0.5, 0.5)
	}
	gapPoints := 5 * (gap + 0.5)

	milestone := 2.5
	if len(statuses) > 0 {
		var sum float64
		for _, s := range statuses {
			sum += milestonePoints[s]
		}
		milestone = 5 * sum / float64(len(statuses))
	}
	return clamp(gapPoints+milestone, 0, 10)
}

// AverageDailyGain returns the weight change per day between the earliest and
// latest known points, counting the birth point when both birth date and
// birth weight are known. It reports false with fewer than two points or no
// elapsed days.
func AverageDailyGain(birth *time.Time, birthWeight *float64, weighings []domain.MeasurementEvent) (float64, bool) {
	type dated struct {
		at time.Time
		kg float64
	}
	var pts []dated
	if birth != nil && birthWeight != nil {
		pts = append(pts, dated{at: domain.Day(*birth), kg: *birthWeight})
	}
	for _, w := range sortedByDate(weighings) {
		pts = append(pts, dated{at: w.Date, kg: w.Kg})
	}
	if len(pts) < 2 {
		return 0, false
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].at.Before(pts[j].at) })
	first, last := pts[0], pts[len(pts)-1]
	days := domain.DaysBetween(first.at, last.at)
	if days <= 0 {
		return 0, false
	}
	return (last.kg - first.kg) / float64(days), true
}

// SubjectGrowth assembles the growth profile of a subject as of asOf.
func SubjectGrowth(subject domain.Subject, weighings []domain.MeasurementEvent, cfg domain.GrowthTargetConfig, asOf time.Time, th Thresholds) GrowthProfile {
	profile := GrowthProfile{
		SubjectID:  subject.ID,
		AgeDays:    AgeInDays(subject.BirthDate, asOf),
		Milestones: MilestoneReport(subject, weighings, cfg, asOf, th.CloseTolerance),
	}
	profile.TargetTodayKg = TargetWeightAtAge(profile.AgeDays, subject.Sex, cfg)

	var current *float64
	if ordered := sortedByDate(weighings); len(ordered) > 0 {
		kg := ordered[len(ordered)-1].Kg
		current = &kg
	} else if subject.BirthWeightKg != nil && subject.BirthDate != nil {
		kg := *subject.BirthWeightKg
		current = &kg
	}
	profile.CurrentKg = current

	if current != nil && subject.BirthDate != nil {
		statuses := make([]MilestoneStatus, 0, len(profile.Milestones))
		for _, m := range profile.Milestones {
			statuses = append(statuses, m.Status)
		}
		score := GrowthScore(*current, profile.TargetTodayKg, statuses)
		profile.Score = &score
	}
	if adg, ok := AverageDailyGain(subject.BirthDate, subject.BirthWeightKg, weighings); ok {
		profile.DailyGainKg = &adg
	}
	return profile
}

// sortedByDate returns a date-ordered copy; same-day events keep entry order.
func sortedByDate(events []domain.MeasurementEvent) []domain.MeasurementEvent {
	out := make([]domain.MeasurementEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out
}
