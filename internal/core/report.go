package core

import (
	"context"
	"time"

	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

// HerdReport aggregates every engine view of one snapshot for export.
type HerdReport struct {
	GeneratedAt  time.Time                        `json:"generated_at"`
	AsOf         time.Time                        `json:"as_of"`
	Weighted     bool                             `json:"weighted"`
	SubjectCount int                              `json:"subject_count"`
	Cohort       analytics.CohortClassification   `json:"cohort"`
	Trends       map[string]analytics.TrendResult `json:"trends"`
	Rollup       []analytics.PeriodBucket         `json:"rollup"`
	Growth       []analytics.GrowthProfile        `json:"growth"`
	Candidates   analytics.CandidateSet           `json:"candidates"`
	Thresholds   analytics.Thresholds             `json:"thresholds"`
	Lifecycle    map[domain.LifecycleStage]int    `json:"lifecycle"`
}

// TrendSubjects returns the subject ids of Trends in lexical order.
func (r HerdReport) TrendSubjects() []string {
	return sortedSubjectIDs(r.Trends)
}

// HerdReport evaluates the latest milk cohort, milk trends and rollup, the
// growth profile of every subject with a known birth date, and the dry-off
// candidates, all from a single snapshot.
func (s *Service) HerdReport(ctx context.Context, weighted bool) (HerdReport, error) {
	var out HerdReport
	err := s.run(ctx, "herd_report", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = HerdReport{
			GeneratedAt:  time.Now().UTC(),
			AsOf:         s.Now(),
			Weighted:     weighted,
			SubjectCount: len(snap.Subjects),
			Cohort:       s.classify(ctx, snap, latestBatch(snap, domain.CategoryMilkYield), weighted),
			Trends:       s.trends(snap, domain.CategoryMilkYield),
			Rollup:       s.rollup(snap, domain.CategoryMilkYield),
			Growth:       []analytics.GrowthProfile{},
			Candidates:   s.candidates(snap),
			Thresholds:   s.thresholds,
			Lifecycle:    make(map[domain.LifecycleStage]int),
		}
		for _, subject := range snap.Subjects {
			if subject.Stage != "" {
				out.Lifecycle[subject.Stage]++
			}
			if subject.BirthDate == nil {
				continue
			}
			out.Growth = append(out.Growth, s.growth(snap, subject))
		}
		return nil
	})
	return out, err
}
