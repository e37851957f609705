package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/analytics"
	"herdcore/pkg/domain"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu      sync.Mutex
	calls   []metricsCall
	classes map[analytics.Class]int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) ObserveClassification(_ context.Context, distribution []analytics.DistributionBucket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.classes == nil {
		c.classes = make(map[analytics.Class]int)
	}
	for _, b := range distribution {
		c.classes[b.Class] += b.Count
	}
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	ended []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logEntry struct {
	level string
	msg   string
}

type captureLogger struct {
	entries []logEntry
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.entries = append(l.entries, logEntry{"debug", msg}) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.entries = append(l.entries, logEntry{"info", msg}) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.entries = append(l.entries, logEntry{"warn", msg}) }
func (l *captureLogger) Error(msg string, _ ...any) { l.entries = append(l.entries, logEntry{"error", msg}) }

func (l *captureLogger) count(level string) int {
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type failingStore struct{}

func (failingStore) Snapshot(context.Context) (domain.HerdSnapshot, error) {
	return domain.HerdSnapshot{}, errors.New("store offline")
}

func (failingStore) Import(context.Context, domain.HerdSnapshot) (domain.IngestReport, error) {
	return domain.IngestReport{}, errors.New("store offline")
}

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func fixedClock(t *testing.T, raw string) Clock {
	d := mustDay(t, raw)
	return ClockFunc(func() time.Time { return d })
}

// herdFixture has five lactating cows milked on 2024-06-03 and 2024-06-10,
// one calf with weighings and one cow late in lactation.
func herdFixture(t *testing.T) domain.HerdSnapshot {
	t.Helper()
	birth := mustDay(t, "2024-01-01")
	birthWeight := 40.0
	snap := domain.HerdSnapshot{
		Subjects: []domain.Subject{
			{ID: "calf", Sex: domain.SexFemale, Stage: domain.StageCalf, BirthDate: &birth, BirthWeightKg: &birthWeight},
		},
		Measurements: []domain.MeasurementEvent{
			{ID: "w1", SubjectID: "calf", Date: mustDay(t, "2024-03-01"), Kg: 90, Category: domain.CategoryBodyWeight},
		},
	}
	for i, kg := range []float64{2.0, 2.5, 3.0, 3.5, 10.0} {
		id := fmt.Sprintf("cow%d", i+1)
		snap.Subjects = append(snap.Subjects, domain.Subject{ID: id, Sex: domain.SexFemale, Stage: domain.StageLactating})
		snap.Lactations = append(snap.Lactations, domain.LactationEvent{ID: "l-" + id, SubjectID: id, Start: mustDay(t, "2024-03-02"), Status: domain.LactationActive})
		snap.Measurements = append(snap.Measurements,
			domain.MeasurementEvent{ID: id + "-a", SubjectID: id, Date: mustDay(t, "2024-06-03"), Kg: kg + 1, Category: domain.CategoryMilkYield},
			domain.MeasurementEvent{ID: id + "-b", SubjectID: id, Date: mustDay(t, "2024-06-10"), Kg: kg, Category: domain.CategoryMilkYield},
		)
	}
	snap.Subjects = append(snap.Subjects, domain.Subject{ID: "late", Sex: domain.SexFemale, Stage: domain.StageLactating})
	snap.Lactations = append(snap.Lactations, domain.LactationEvent{ID: "l-late", SubjectID: "late", Start: mustDay(t, "2023-09-01"), Status: domain.LactationActive})
	return snap
}

func newFixtureService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store := memory.NewStore()
	if _, err := store.Import(context.Background(), herdFixture(t)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return NewService(store, append([]Option{WithClock(fixedClock(t, "2024-06-10"))}, opts...)...)
}
