package analytics

import (
	"sort"
	"time"

	"herdcore/pkg/domain"
)

// Class is the cohort-relative production classification of a subject.
type Class string

// Classes in distribution order.
const (
	ClassPoor        Class = "poor"
	ClassAverage     Class = "average"
	ClassOutstanding Class = "outstanding"
)

// ClassOrder returns the fixed bucket order used by distributions.
func ClassOrder() []Class {
	return []Class{ClassPoor, ClassAverage, ClassOutstanding}
}

// CohortBatch is the set of same-day measurements of one category, at most
// one per subject.
type CohortBatch struct {
	Date     time.Time                  `json:"date"`
	Category domain.MeasurementCategory `json:"category"`
	Events   []domain.MeasurementEvent  `json:"events"`
}

// CohortInput bundles what ClassifyCohort needs besides thresholds.
type CohortInput struct {
	Batch CohortBatch
	// Subjects supplies reference flags; subjects absent here are classified.
	Subjects []domain.Subject
	// Histories holds each subject's measurement history, used for its trend.
	Histories  map[string][]domain.MeasurementEvent
	Lactations []domain.LactationEvent
	// Weighted selects the persistence-weighted score instead of raw kg.
	Weighted bool
}

// ClassifiedSubject is one scored cohort entry.
type ClassifiedSubject struct {
	SubjectID     string      `json:"subject_id"`
	MeasurementID string      `json:"measurement_id"`
	RawKg         float64     `json:"raw_kg"`
	DaysInMilk    int         `json:"days_in_milk"`
	WeightedScore float64     `json:"weighted_score"`
	Score         float64     `json:"score"`
	Class         Class       `json:"class"`
	Trend         TrendResult `json:"trend"`
}

// DistributionBucket counts the subjects of one class.
type DistributionBucket struct {
	Class Class `json:"class"`
	Count int   `json:"count"`
}

// CohortClassification is the outcome of classifying a cohort batch.
type CohortClassification struct {
	Date           time.Time                  `json:"date"`
	Category       domain.MeasurementCategory `json:"category"`
	Weighted       bool                       `json:"weighted"`
	Subjects       []ClassifiedSubject        `json:"subjects"`
	Distribution   []DistributionBucket       `json:"distribution"`
	Mean           float64                    `json:"mean"`
	StdDev         float64                    `json:"std_dev"`
	WeightedMean   float64                    `json:"weighted_mean"`
	WeightedStdDev float64                    `json:"weighted_std_dev"`
	// Unscored lists subjects dropped because no lactation governs the batch date.
	Unscored []string `json:"unscored,omitempty"`
}

// GroupCohorts splits events of the category into same-day batches, most
// recent first. When a subject has several events on a day the last recorded
// one is kept.
func GroupCohorts(events []domain.MeasurementEvent, category domain.MeasurementCategory) []CohortBatch {
	byDay := make(map[time.Time]map[string]domain.MeasurementEvent)
	for _, event := range sortedByDate(events) {
		if event.Category != category {
			continue
		}
		day := domain.Day(event.Date)
		if byDay[day] == nil {
			byDay[day] = make(map[string]domain.MeasurementEvent)
		}
		byDay[day][event.SubjectID] = event
	}
	batches := make([]CohortBatch, 0, len(byDay))
	for day, bySubject := range byDay {
		batch := CohortBatch{Date: day, Category: category, Events: make([]domain.MeasurementEvent, 0, len(bySubject))}
		for _, event := range bySubject {
			batch.Events = append(batch.Events, event)
		}
		sort.Slice(batch.Events, func(i, j int) bool { return batch.Events[i].SubjectID < batch.Events[j].SubjectID })
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].Date.After(batches[j].Date) })
	return batches
}

// GoverningLactation returns the subject's most recent lactation started on
// or before date, regardless of its current status.
func GoverningLactation(lactations []domain.LactationEvent, subjectID string, date time.Time) (domain.LactationEvent, bool) {
	var best domain.LactationEvent
	found := false
	day := domain.Day(date)
	for _, l := range lactations {
		if l.SubjectID != subjectID || l.Start.After(day) {
			continue
		}
		if !found || l.Start.After(best.Start) {
			best = l
			found = true
		}
	}
	return best, found
}

// DaysInMilk returns the days elapsed on date since the governing lactation started.
func DaysInMilk(lactations []domain.LactationEvent, subjectID string, date time.Time) (int, bool) {
	l, ok := GoverningLactation(lactations, subjectID, date)
	if !ok {
		return 0, false
	}
	return domain.DaysBetween(l.Start, date), true
}

// WeightedScore applies persistence weighting: kg × (1 + (DEL−50)/(DEL+50)).
// Weighting is neutral at DEL 50, discounts earlier and rewards later
// production.
func WeightedScore(kg float64, del int) float64 {
	d := float64(del)
	if d+persistenceReferenceDEL <= 0 {
		return kg
	}
	return kg * (1 + (d-persistenceReferenceDEL)/(d+persistenceReferenceDEL))
}

// ClassifyCohort scores and classifies every batch entry against the cohort
// mean and population standard deviation of the selected score. Entries
// without a governing lactation are dropped; reference subjects are skipped.
// A cohort whose σ does not exceed th.DegenerateStdDev is classified Average
// throughout. An empty cohort yields empty results with zero statistics.
func ClassifyCohort(in CohortInput, th Thresholds) CohortClassification {
	out := CohortClassification{
		Date:     in.Batch.Date,
		Category: in.Batch.Category,
		Weighted:     in.Weighted,
		Subjects:     []ClassifiedSubject{},
		Distribution: []DistributionBucket{},
	}
	reference := make(map[string]bool, len(in.Subjects))
	for _, s := range in.Subjects {
		reference[s.ID] = s.Reference
	}

	for _, event := range in.Batch.Events {
		if reference[event.SubjectID] {
			continue
		}
		del, ok := DaysInMilk(in.Lactations, event.SubjectID, event.Date)
		if !ok {
			out.Unscored = append(out.Unscored, event.SubjectID)
			continue
		}
		entry := ClassifiedSubject{
			SubjectID:     event.SubjectID,
			MeasurementID: event.ID,
			RawKg:         event.Kg,
			DaysInMilk:    del,
			WeightedScore: WeightedScore(event.Kg, del),
			Trend:         DetectTrend(historyUntil(in.Histories[event.SubjectID], in.Batch.Category, event.Date), th.TrendMargin),
		}
		entry.Score = entry.RawKg
		if in.Weighted {
			entry.Score = entry.WeightedScore
		}
		out.Subjects = append(out.Subjects, entry)
	}
	if len(out.Subjects) == 0 {
		return out
	}

	raw := make([]float64, len(out.Subjects))
	weighted := make([]float64, len(out.Subjects))
	for i, s := range out.Subjects {
		raw[i] = s.RawKg
		weighted[i] = s.WeightedScore
	}
	out.Mean, out.StdDev = Mean(raw), PopulationStdDev(raw)
	out.WeightedMean, out.WeightedStdDev = Mean(weighted), PopulationStdDev(weighted)

	mu, sigma := out.Mean, out.StdDev
	if in.Weighted {
		mu, sigma = out.WeightedMean, out.WeightedStdDev
	}
	counts := make(map[Class]int, 3)
	for i := range out.Subjects {
		c := classify(out.Subjects[i].Score, mu, sigma, th)
		out.Subjects[i].Class = c
		counts[c]++
	}
	for _, c := range ClassOrder() {
		out.Distribution = append(out.Distribution, DistributionBucket{Class: c, Count: counts[c]})
	}
	return out
}

func classify(score, mu, sigma float64, th Thresholds) Class {
	if sigma <= th.DegenerateStdDev {
		return ClassAverage
	}
	band := th.ClassificationBand * sigma
	switch {
	case score < mu-band:
		return ClassPoor
	case score > mu+band:
		return ClassOutstanding
	default:
		return ClassAverage
	}
}

// historyUntil keeps the category's events dated on or before the cutoff.
func historyUntil(history []domain.MeasurementEvent, category domain.MeasurementCategory, cutoff time.Time) []domain.MeasurementEvent {
	out := make([]domain.MeasurementEvent, 0, len(history))
	for _, e := range history {
		if e.Category == category && !e.Date.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
