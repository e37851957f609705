package analytics

import (
	"reflect"
	"testing"
	"time"

	"herdcore/pkg/domain"
)

func lactation(t *testing.T, id, subject, start string, status domain.LactationStatus) domain.LactationEvent {
	return domain.LactationEvent{ID: id, SubjectID: subject, Start: day(t, start), Status: status}
}

func TestDryOffWindowEdgesAreInclusive(t *testing.T) {
	start := day(t, "2024-01-01")
	lactations := []domain.LactationEvent{lactation(t, "l1", "cow", "2024-01-01", domain.LactationActive)}
	detector := NewDryOffDetector(DefaultThresholds())
	cases := []struct {
		del  int
		want bool
	}{
		{269, false},
		{270, true},
		{285, true},
		{300, true},
		{301, false},
	}
	for _, tc := range cases {
		in := CandidateInput{AsOf: start.AddDate(0, 0, tc.del), Lactations: lactations}
		if got := detector.Detect(in).Contains("cow"); got != tc.want {
			t.Fatalf("DEL %d: expected candidate=%v, got %v", tc.del, tc.want, got)
		}
	}
}

func TestDryOffWindowIgnoresClosedLactations(t *testing.T) {
	lactations := []domain.LactationEvent{lactation(t, "l1", "cow", "2024-01-01", domain.LactationClosed)}
	in := CandidateInput{AsOf: day(t, "2024-01-01").AddDate(0, 0, 280), Lactations: lactations}
	if NewDryOffDetector(DefaultThresholds()).Detect(in).Contains("cow") {
		t.Fatalf("expected closed lactation not to qualify")
	}
}

func TestDecliningYieldRequiresPregnancy(t *testing.T) {
	history := []domain.MeasurementEvent{
		milk(t, "m1", "cow", "2024-05-01", 30),
		milk(t, "m2", "cow", "2024-05-08", 28),
		milk(t, "m3", "cow", "2024-05-15", 25),
		milk(t, "m4", "cow", "2024-05-22", 21),
	}
	in := CandidateInput{
		AsOf:     day(t, "2024-05-30"),
		Subjects: []domain.Subject{{ID: "cow", Pregnant: true}},
		Milk:     map[string][]domain.MeasurementEvent{"cow": history},
	}
	detector := NewDryOffDetector(DefaultThresholds())
	set := detector.Detect(in)
	if !reflect.DeepEqual(set.Reasons["cow"], []string{"declining_yield"}) {
		t.Fatalf("expected declining_yield, got %v", set.Reasons)
	}

	in.Subjects[0].Pregnant = false
	if detector.Detect(in).Contains("cow") {
		t.Fatalf("expected open cow not to qualify on yield alone")
	}

	in.Subjects[0].Pregnant = true
	in.Milk["cow"] = append([]domain.MeasurementEvent{}, history[:3]...)
	in.Milk["cow"] = append(in.Milk["cow"], milk(t, "m4", "cow", "2024-05-22", 25))
	if detector.Detect(in).Contains("cow") {
		t.Fatalf("expected a flat step to break the decline")
	}
}

func TestDecliningYieldIgnoresFutureEvents(t *testing.T) {
	in := CandidateInput{
		AsOf:     day(t, "2024-05-16"),
		Subjects: []domain.Subject{{ID: "cow", Pregnant: true}},
		Milk: map[string][]domain.MeasurementEvent{"cow": {
			milk(t, "m1", "cow", "2024-05-01", 30),
			milk(t, "m2", "cow", "2024-05-08", 28),
			milk(t, "m3", "cow", "2024-05-15", 25),
			milk(t, "m4", "cow", "2024-05-22", 21),
		}},
	}
	if NewDryOffDetector(DefaultThresholds()).Detect(in).Contains("cow") {
		t.Fatalf("expected only three events on or before AsOf")
	}
}

func TestDetectMergesRulesWithoutDuplicates(t *testing.T) {
	snapshot := domain.HerdSnapshot{
		Subjects: []domain.Subject{{ID: "b", Pregnant: true}, {ID: "a"}},
		Lactations: []domain.LactationEvent{
			lactation(t, "la", "a", "2024-01-01", domain.LactationDrying),
			lactation(t, "lb", "b", "2023-08-01", domain.LactationDrying),
		},
		Measurements: []domain.MeasurementEvent{
			milk(t, "b1", "b", "2024-04-01", 20),
			milk(t, "b2", "b", "2024-04-08", 19),
			milk(t, "b3", "b", "2024-04-15", 18),
			milk(t, "b4", "b", "2024-04-22", 17),
		},
	}
	in := CandidateInputFromSnapshot(snapshot, day(t, "2024-05-01"))
	set := NewDryOffDetector(DefaultThresholds()).Detect(in)
	if !reflect.DeepEqual(set.SubjectIDs, []string{"a", "b"}) {
		t.Fatalf("expected sorted unique candidates, got %v", set.SubjectIDs)
	}
	if !reflect.DeepEqual(set.Reasons["b"], []string{"declining_yield", "already_drying"}) {
		t.Fatalf("expected rule order reasons, got %v", set.Reasons["b"])
	}
	if !reflect.DeepEqual(set.Reasons["a"], []string{"already_drying"}) {
		t.Fatalf("unexpected reasons for a: %v", set.Reasons["a"])
	}
}

type fixedRule struct {
	name string
	ids  []string
}

func (r fixedRule) Name() string { return r.name }
func (r fixedRule) Evaluate(CandidateInput) []string { return r.ids }

func TestCandidateDetectorRegister(t *testing.T) {
	d := NewCandidateDetector()
	if set := d.Detect(CandidateInput{AsOf: time.Now()}); len(set.SubjectIDs) != 0 {
		t.Fatalf("expected no candidates without rules")
	}
	d.Register(fixedRule{name: "x", ids: []string{"z", "y", "z"}})
	set := d.Detect(CandidateInput{})
	if !reflect.DeepEqual(set.SubjectIDs, []string{"y", "z"}) || len(set.Reasons["z"]) != 1 {
		t.Fatalf("unexpected set %+v", set)
	}
}
