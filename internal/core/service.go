// Package core wires the analytics engine to a herd record store. Every
// operation loads a snapshot, evaluates the engine and reports the outcome to
// the configured logger, metrics recorder and tracer.
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

// Service exposes the engine over a record store.
type Service struct {
	store      domain.RecordStore
	thresholds analytics.Thresholds
	targets    domain.GrowthTargetConfig
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	clock      Clock
	cache      *ResultCache
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the clock used as the evaluation date.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithThresholds overrides the engine thresholds.
func WithThresholds(th analytics.Thresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

// WithGrowthTargets overrides the growth target curve.
func WithGrowthTargets(cfg domain.GrowthTargetConfig) Option {
	return func(s *Service) { s.targets = cfg }
}

// WithResultCache enables memoisation; nil disables it.
func WithResultCache(cache *ResultCache) Option {
	return func(s *Service) { s.cache = cache }
}

// NewService constructs a service over store with default thresholds, growth
// targets and no-op observability.
func NewService(store domain.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		thresholds: analytics.DefaultThresholds(),
		targets:    domain.DefaultGrowthTargets(),
		logger:     noopLogger{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		clock:      ClockFunc(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() domain.RecordStore { return s.store }

// Thresholds returns the active engine thresholds.
func (s *Service) Thresholds() analytics.Thresholds { return s.thresholds }

// Now returns the evaluation date, truncated to the day.
func (s *Service) Now() time.Time { return domain.Day(s.clock.Now()) }

func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.logger.Error("herdcore operation failed", "operation", operation, "duration", duration, "error", err)
		return err
	}
	s.logger.Debug("herdcore operation completed", "operation", operation, "duration", duration)
	return nil
}

func (s *Service) snapshot(ctx context.Context) (domain.HerdSnapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return domain.HerdSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Import normalises and stores the records, then drops memoised results.
func (s *Service) Import(ctx context.Context, records domain.HerdSnapshot) (domain.IngestReport, error) {
	var report domain.IngestReport
	err := s.run(ctx, "import", func(ctx context.Context) error {
		var err error
		report, err = s.store.Import(ctx, records)
		if err != nil {
			return fmt.Errorf("import records: %w", err)
		}
		if s.cache != nil {
			s.cache.Purge()
		}
		if len(report.Issues) > 0 {
			s.logger.Warn("records rejected or adjusted during import", "issues", len(report.Issues))
		}
		return nil
	})
	return report, err
}

// ClassifyCohort classifies the batch of the category recorded on date.
func (s *Service) ClassifyCohort(ctx context.Context, date time.Time, category domain.MeasurementCategory, weighted bool) (analytics.CohortClassification, error) {
	var out analytics.CohortClassification
	err := s.run(ctx, "classify_cohort", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		batch := analytics.CohortBatch{Date: domain.Day(date), Category: category}
		for _, b := range analytics.GroupCohorts(snap.Measurements, category) {
			if b.Date.Equal(batch.Date) {
				batch = b
				break
			}
		}
		out = s.classify(ctx, snap, batch, weighted)
		return nil
	})
	return out, err
}

// LatestCohort classifies the most recent batch of the category. A category
// without measurements yields an empty classification.
func (s *Service) LatestCohort(ctx context.Context, category domain.MeasurementCategory, weighted bool) (analytics.CohortClassification, error) {
	var out analytics.CohortClassification
	err := s.run(ctx, "latest_cohort", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = s.classify(ctx, snap, latestBatch(snap, category), weighted)
		return nil
	})
	return out, err
}

func latestBatch(snap domain.HerdSnapshot, category domain.MeasurementCategory) analytics.CohortBatch {
	batches := analytics.GroupCohorts(snap.Measurements, category)
	if len(batches) == 0 {
		return analytics.CohortBatch{Category: category}
	}
	return batches[0]
}

func (s *Service) classify(ctx context.Context, snap domain.HerdSnapshot, batch analytics.CohortBatch, weighted bool) analytics.CohortClassification {
	computed := false
	result := memoize(s.cache, "classify_cohort", func() analytics.CohortClassification {
		computed = true
		return analytics.ClassifyCohort(analytics.CohortInput{
			Batch:      batch,
			Subjects:   snap.Subjects,
			Histories:  histories(snap, batch.Category),
			Lactations: snap.Lactations,
			Weighted:   weighted,
		}, s.thresholds)
	}, snap, batch, weighted, s.thresholds)
	if obs, ok := s.metrics.(ClassificationObserver); ok && computed {
		obs.ObserveClassification(ctx, result.Distribution)
	}
	if len(result.Unscored) > 0 {
		s.logger.Info("cohort entries without a governing lactation", "date", batch.Date.Format("2006-01-02"), "unscored", len(result.Unscored))
	}
	return result
}

// GrowthProfile evaluates one subject against the growth target curve as of
// the service clock.
func (s *Service) GrowthProfile(ctx context.Context, subjectID string) (analytics.GrowthProfile, error) {
	var out analytics.GrowthProfile
	err := s.run(ctx, "growth_profile", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		subject, ok := snap.Subject(subjectID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntitySubject, ID: subjectID}
		}
		out = s.growth(snap, subject)
		return nil
	})
	return out, err
}

func (s *Service) growth(snap domain.HerdSnapshot, subject domain.Subject) analytics.GrowthProfile {
	weighings := snap.MeasurementsFor(subject.ID, domain.CategoryBodyWeight)
	asOf := s.Now()
	return memoize(s.cache, "growth_profile", func() analytics.GrowthProfile {
		return analytics.SubjectGrowth(subject, weighings, s.targets, asOf, s.thresholds)
	}, subject, weighings, s.targets, asOf, s.thresholds)
}

// Trends returns each subject's trend over its history in the category.
func (s *Service) Trends(ctx context.Context, category domain.MeasurementCategory) (map[string]analytics.TrendResult, error) {
	var out map[string]analytics.TrendResult
	err := s.run(ctx, "trends", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = s.trends(snap, category)
		return nil
	})
	return out, err
}

func (s *Service) trends(snap domain.HerdSnapshot, category domain.MeasurementCategory) map[string]analytics.TrendResult {
	byID := histories(snap, category)
	return memoize(s.cache, "trends", func() map[string]analytics.TrendResult {
		out := make(map[string]analytics.TrendResult, len(byID))
		for id, history := range byID {
			out[id] = analytics.DetectTrend(history, s.thresholds.TrendMargin)
		}
		return out
	}, byID, s.thresholds.TrendMargin)
}

// Rollup groups the category's history into calendar months.
func (s *Service) Rollup(ctx context.Context, category domain.MeasurementCategory) ([]analytics.PeriodBucket, error) {
	var out []analytics.PeriodBucket
	err := s.run(ctx, "rollup", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = s.rollup(snap, category)
		return nil
	})
	return out, err
}

func (s *Service) rollup(snap domain.HerdSnapshot, category domain.MeasurementCategory) []analytics.PeriodBucket {
	return memoize(s.cache, "rollup", func() []analytics.PeriodBucket {
		return analytics.Rollup(snap.Measurements, category)
	}, snap.Measurements, category)
}

// DryOffCandidates lists subjects ready to be dried off as of the service clock.
func (s *Service) DryOffCandidates(ctx context.Context) (analytics.CandidateSet, error) {
	var out analytics.CandidateSet
	err := s.run(ctx, "dry_off_candidates", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		out = s.candidates(snap)
		return nil
	})
	return out, err
}

func (s *Service) candidates(snap domain.HerdSnapshot) analytics.CandidateSet {
	asOf := s.Now()
	return memoize(s.cache, "dry_off_candidates", func() analytics.CandidateSet {
		return analytics.NewDryOffDetector(s.thresholds).Detect(analytics.CandidateInputFromSnapshot(snap, asOf))
	}, snap, asOf, s.thresholds)
}

// histories groups the category's events by subject.
func histories(snap domain.HerdSnapshot, category domain.MeasurementCategory) map[string][]domain.MeasurementEvent {
	out := make(map[string][]domain.MeasurementEvent)
	for _, event := range snap.MeasurementsByCategory(category) {
		out[event.SubjectID] = append(out[event.SubjectID], event)
	}
	return out
}

func sortedSubjectIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
