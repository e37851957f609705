package analytics

import (
	"sort"
	"time"

	"herdcore/pkg/domain"
)

// CandidateInput is the herd state candidate rules evaluate.
type CandidateInput struct {
	AsOf       time.Time
	Subjects   []domain.Subject
	Lactations []domain.LactationEvent
	// Milk holds each subject's milk-yield history.
	Milk map[string][]domain.MeasurementEvent
}

// CandidateInputFromSnapshot derives the rule input from a herd snapshot.
func CandidateInputFromSnapshot(s domain.HerdSnapshot, asOf time.Time) CandidateInput {
	milk := make(map[string][]domain.MeasurementEvent)
	for _, event := range s.Measurements {
		if event.Category == domain.CategoryMilkYield {
			milk[event.SubjectID] = append(milk[event.SubjectID], event)
		}
	}
	return CandidateInput{AsOf: asOf, Subjects: s.Subjects, Lactations: s.Lactations, Milk: milk}
}

// CandidateRule selects subjects ready for a lifecycle transition.
type CandidateRule interface {
	Name() string
	Evaluate(in CandidateInput) []string
}

// CandidateSet is the deduplicated union of rule matches. Reasons lists the
// rules that matched each subject, in registration order.
type CandidateSet struct {
	SubjectIDs []string            `json:"subject_ids"`
	Reasons    map[string][]string `json:"reasons"`
}

// Contains reports whether the subject is a candidate.
func (c CandidateSet) Contains(id string) bool {
	_, ok := c.Reasons[id]
	return ok
}

// CandidateDetector orchestrates candidate rules. Rules are inclusive: a
// subject matched by any rule is a candidate.
type CandidateDetector struct {
	rules []CandidateRule
}

// NewCandidateDetector constructs a detector without rules.
func NewCandidateDetector() *CandidateDetector {
	return &CandidateDetector{}
}

// NewDryOffDetector builds the drying-off detector: the DEL window, the
// pregnant declining-yield run and lactations already drying.
func NewDryOffDetector(th Thresholds) *CandidateDetector {
	d := NewCandidateDetector()
	lo, hi := th.DryOffWindow()
	d.Register(delWindowRule{lo: lo, hi: hi})
	d.Register(decliningYieldRule{run: th.DeclineRun})
	d.Register(dryingRule{})
	return d
}

// Register appends a rule to the detector.
func (d *CandidateDetector) Register(rule CandidateRule) {
	d.rules = append(d.rules, rule)
}

// Detect evaluates every registered rule and merges their matches.
func (d *CandidateDetector) Detect(in CandidateInput) CandidateSet {
	set := CandidateSet{SubjectIDs: []string{}, Reasons: make(map[string][]string)}
	for _, rule := range d.rules {
		for _, id := range rule.Evaluate(in) {
			if _, seen := set.Reasons[id]; !seen {
				set.SubjectIDs = append(set.SubjectIDs, id)
			}
			if !containsString(set.Reasons[id], rule.Name()) {
				set.Reasons[id] = append(set.Reasons[id], rule.Name())
			}
		}
	}
	sort.Strings(set.SubjectIDs)
	return set
}

type delWindowRule struct{ lo, hi int }

func (delWindowRule) Name() string { return "del_window" }

func (r delWindowRule) Evaluate(in CandidateInput) []string {
	var out []string
	for _, subjectID := range lactatingSubjects(in.Lactations) {
		l, ok := GoverningLactation(in.Lactations, subjectID, in.AsOf)
		if !ok || l.Status != domain.LactationActive {
			continue
		}
		del := domain.DaysBetween(l.Start, in.AsOf)
		if del >= r.lo && del <= r.hi {
			out = append(out, subjectID)
		}
	}
	return out
}

type decliningYieldRule struct{ run int }

func (decliningYieldRule) Name() string { return "declining_yield" }

func (r decliningYieldRule) Evaluate(in CandidateInput) []string {
	var out []string
	if r.run < 2 {
		return out
	}
	for _, subject := range in.Subjects {
		if !subject.Pregnant {
			continue
		}
		history := historyUntil(in.Milk[subject.ID], domain.CategoryMilkYield, in.AsOf)
		ordered := sortedByDate(history)
		if len(ordered) < r.run {
			continue
		}
		recent := ordered[len(ordered)-r.run:]
		declining := true
		for i := 1; i < len(recent); i++ {
			if recent[i].Kg >= recent[i-1].Kg {
				declining = false
				break
			}
		}
		if declining {
			out = append(out, subject.ID)
		}
	}
	return out
}

type dryingRule struct{}

func (dryingRule) Name() string { return "already_drying" }

func (dryingRule) Evaluate(in CandidateInput) []string {
	var out []string
	for _, l := range in.Lactations {
		if l.Status == domain.LactationDrying {
			out = append(out, l.SubjectID)
		}
	}
	return out
}

func lactatingSubjects(lactations []domain.LactationEvent) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lactations {
		if _, ok := seen[l.SubjectID]; ok {
			continue
		}
		seen[l.SubjectID] = struct{}{}
		out = append(out, l.SubjectID)
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
