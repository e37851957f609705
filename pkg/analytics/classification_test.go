package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"herdcore/pkg/domain"
)

// cohortOf builds a same-day milk batch where every subject started lactating
// 100 days earlier.
func cohortOf(t *testing.T, kgs ...float64) CohortInput {
	t.Helper()
	in := CohortInput{
		Batch:     CohortBatch{Date: day(t, "2024-06-10"), Category: domain.CategoryMilkYield},
		Histories: make(map[string][]domain.MeasurementEvent),
	}
	for i, kg := range kgs {
		id := fmt.Sprintf("s%d", i+1)
		event := milk(t, "m-"+id, id, "2024-06-10", kg)
		in.Batch.Events = append(in.Batch.Events, event)
		in.Histories[id] = []domain.MeasurementEvent{event}
		in.Lactations = append(in.Lactations, domain.LactationEvent{ID: "l-" + id, SubjectID: id, Start: day(t, "2024-03-02"), Status: domain.LactationActive})
	}
	return in
}

func classes(res CohortClassification) []Class {
	out := make([]Class, len(res.Subjects))
	for i, s := range res.Subjects {
		out[i] = s.Class
	}
	return out
}

func TestClassifyCohortEndToEnd(t *testing.T) {
	res := ClassifyCohort(cohortOf(t, 2.0, 2.5, 3.0, 3.5, 10.0), DefaultThresholds())
	if math.Abs(res.Mean-4.2) > 1e-9 {
		t.Fatalf("expected mean 4.2, got %v", res.Mean)
	}
	if math.Abs(res.StdDev-2.9428) > 1e-3 {
		t.Fatalf("expected population σ≈2.943, got %v", res.StdDev)
	}
	// Poor cut-off is 4.2 − 0.4σ ≈ 3.023, so 3.0 falls below it.
	want := []Class{ClassPoor, ClassPoor, ClassPoor, ClassAverage, ClassOutstanding}
	if got := classes(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	wantDist := []DistributionBucket{{ClassPoor, 3}, {ClassAverage, 1}, {ClassOutstanding, 1}}
	if !reflect.DeepEqual(res.Distribution, wantDist) {
		t.Fatalf("expected distribution %v, got %v", wantDist, res.Distribution)
	}
	if res.Subjects[0].DaysInMilk != 100 {
		t.Fatalf("expected DEL 100, got %d", res.Subjects[0].DaysInMilk)
	}
}

func TestClassifyCohortBoundariesAreAverage(t *testing.T) {
	// μ = 10 and σ = 5, so the cut-offs sit exactly on 8 and 12.
	res := ClassifyCohort(cohortOf(t, 8, 12, 0, 11, 14, 15), DefaultThresholds())
	if res.Mean != 10 || res.StdDev != 5 {
		t.Fatalf("expected μ=10 σ=5, got %v/%v", res.Mean, res.StdDev)
	}
	want := []Class{ClassAverage, ClassAverage, ClassPoor, ClassAverage, ClassOutstanding, ClassOutstanding}
	if got := classes(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestClassifyCohortDegenerateGuard(t *testing.T) {
	res := ClassifyCohort(cohortOf(t, 20, 20, 20, 20), DefaultThresholds())
	for _, c := range classes(res) {
		if c != ClassAverage {
			t.Fatalf("expected uniform cohort to be average, got %v", classes(res))
		}
	}
	near := ClassifyCohort(cohortOf(t, 20, 20.1, 20, 20.1), DefaultThresholds())
	for _, c := range classes(near) {
		if c != ClassAverage {
			t.Fatalf("expected near-uniform cohort (σ=0.05) to be average, got %v", classes(near))
		}
	}
}

func TestClassifyCohortIsDeterministic(t *testing.T) {
	in := cohortOf(t, 12, 18, 25, 31, 9, 22)
	in.Weighted = true
	a := ClassifyCohort(in, DefaultThresholds())
	b := ClassifyCohort(in, DefaultThresholds())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical results across runs")
	}
}

func TestClassifyCohortEmptyAndUnscored(t *testing.T) {
	in := cohortOf(t, 10, 20)
	in.Lactations = nil
	res := ClassifyCohort(in, DefaultThresholds())
	if len(res.Subjects) != 0 || len(res.Distribution) != 0 || res.Mean != 0 || res.StdDev != 0 {
		t.Fatalf("expected empty outputs, got %+v", res)
	}
	if !reflect.DeepEqual(res.Unscored, []string{"s1", "s2"}) {
		t.Fatalf("expected both subjects unscored, got %v", res.Unscored)
	}

	empty := ClassifyCohort(CohortInput{}, DefaultThresholds())
	if len(empty.Subjects) != 0 || empty.WeightedStdDev != 0 {
		t.Fatalf("expected empty classification, got %+v", empty)
	}
	raw, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"subjects":[]`) || !strings.Contains(string(raw), `"distribution":[]`) {
		t.Fatalf("expected empty arrays rather than null, got %s", raw)
	}
}

func TestClassifyCohortSkipsReferenceSubjects(t *testing.T) {
	in := cohortOf(t, 10, 20, 30)
	in.Subjects = []domain.Subject{{ID: "s2", Reference: true}}
	res := ClassifyCohort(in, DefaultThresholds())
	if len(res.Subjects) != 2 || res.Subjects[0].SubjectID != "s1" || res.Subjects[1].SubjectID != "s3" {
		t.Fatalf("expected reference subject to be skipped, got %+v", res.Subjects)
	}
}

func TestClassifyCohortWeightedUsesPersistenceScore(t *testing.T) {
	in := cohortOf(t, 20, 20)
	// s1 is early in lactation (DEL 10), s2 late (DEL 200).
	in.Lactations[0].Start = day(t, "2024-05-31")
	in.Lactations[1].Start = day(t, "2023-11-23")
	in.Weighted = true
	res := ClassifyCohort(in, DefaultThresholds())
	if res.Subjects[0].DaysInMilk != 10 || res.Subjects[1].DaysInMilk != 200 {
		t.Fatalf("unexpected DEL %d/%d", res.Subjects[0].DaysInMilk, res.Subjects[1].DaysInMilk)
	}
	if res.StdDev != 0 || res.WeightedStdDev == 0 {
		t.Fatalf("expected raw σ 0 and weighted σ > 0, got %v/%v", res.StdDev, res.WeightedStdDev)
	}
	if res.Subjects[0].Class != ClassPoor || res.Subjects[1].Class != ClassOutstanding {
		t.Fatalf("expected early lactation poor and late outstanding, got %v", classes(res))
	}
	in.Weighted = false
	if got := classes(ClassifyCohort(in, DefaultThresholds())); got[0] != ClassAverage || got[1] != ClassAverage {
		t.Fatalf("expected raw classification to be average, got %v", got)
	}
}

func TestWeightedScorePersistence(t *testing.T) {
	if got := WeightedScore(20, 50); got != 20 {
		t.Fatalf("expected neutral weighting at DEL 50, got %v", got)
	}
	prev := WeightedScore(20, 0)
	for del := 1; del <= 400; del++ {
		cur := WeightedScore(20, del)
		if cur <= prev {
			t.Fatalf("expected weighted score to increase with DEL at %d", del)
		}
		if del < 50 && cur >= 20 {
			t.Fatalf("expected discount below DEL 50, got %v at %d", cur, del)
		}
		if del > 50 && cur <= 20 {
			t.Fatalf("expected premium above DEL 50, got %v at %d", cur, del)
		}
		prev = cur
	}
}

func TestGroupCohorts(t *testing.T) {
	events := []domain.MeasurementEvent{
		milk(t, "a1", "a", "2024-06-01", 10),
		milk(t, "b1", "b", "2024-06-01", 12),
		milk(t, "a2", "a", "2024-06-02", 11),
		weighing(t, "w1", "a", "2024-06-02", 400),
	}
	batches := GroupCohorts(events, domain.CategoryMilkYield)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if !batches[0].Date.Equal(day(t, "2024-06-02")) || len(batches[0].Events) != 1 {
		t.Fatalf("expected latest batch first with one milk event, got %+v", batches[0])
	}
	if len(batches[1].Events) != 2 || batches[1].Events[0].SubjectID != "a" {
		t.Fatalf("unexpected older batch %+v", batches[1])
	}
}

func TestGoverningLactation(t *testing.T) {
	lactations := []domain.LactationEvent{
		{ID: "old", SubjectID: "a", Start: day(t, "2023-01-01"), Status: domain.LactationClosed},
		{ID: "new", SubjectID: "a", Start: day(t, "2024-01-01"), Status: domain.LactationActive},
	}
	if l, ok := GoverningLactation(lactations, "a", day(t, "2023-06-01")); !ok || l.ID != "old" {
		t.Fatalf("expected old lactation to govern mid-2023, got %+v", l)
	}
	if l, ok := GoverningLactation(lactations, "a", day(t, "2024-02-01")); !ok || l.ID != "new" {
		t.Fatalf("expected new lactation to govern 2024, got %+v", l)
	}
	if _, ok := DaysInMilk(lactations, "a", day(t, "2022-01-01")); ok {
		t.Fatalf("expected no DEL before first lactation")
	}
}
