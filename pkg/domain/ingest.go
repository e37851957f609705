package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RawSubject is a subject as supplied by an external record source, before
// normalisation. Dates are free-form strings.
type RawSubject struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Sex           string   `json:"sex"`
	BirthDate     string   `json:"birth_date"`
	BirthWeightKg *float64 `json:"birth_weight_kg"`
	Stage         string   `json:"stage"`
	Reference     bool     `json:"reference"`
	Pregnant      bool     `json:"pregnant"`
	Location      string   `json:"location"`
}

// RawMeasurement is an unvalidated measurement event.
type RawMeasurement struct {
	ID         string  `json:"id"`
	SubjectID  string  `json:"subject_id"`
	Date       string  `json:"date"`
	Kg         float64 `json:"kg"`
	Category   string  `json:"category"`
	RecordedAt string  `json:"recorded_at"`
}

// RawLactation is an unvalidated lactation event.
type RawLactation struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Start     string `json:"start"`
	Status    string `json:"status"`
}

// RecordBatch groups raw records handed over by an import.
type RecordBatch struct {
	Subjects     []RawSubject     `json:"subjects"`
	Measurements []RawMeasurement `json:"measurements"`
	Lactations   []RawLactation   `json:"lactations"`
}

// IngestIssue describes a record that was rejected or adjusted.
type IngestIssue struct {
	Entity EntityType `json:"entity"`
	ID     string     `json:"id,omitempty"`
	Index  int        `json:"index"`
	Reason string     `json:"reason"`
}

func (i IngestIssue) String() string {
	if i.ID != "" {
		return fmt.Sprintf("%s %s: %s", i.Entity, i.ID, i.Reason)
	}
	return fmt.Sprintf("%s #%d: %s", i.Entity, i.Index, i.Reason)
}

// IngestReport summarises a normalisation pass.
type IngestReport struct {
	Subjects          int           `json:"subjects"`
	Measurements      int           `json:"measurements"`
	Lactations        int           `json:"lactations"`
	Superseded        int           `json:"superseded"`
	ClosedLactations  int           `json:"closed_lactations"`
	UnparsedBirthDate int           `json:"unparsed_birth_dates"`
	Issues            []IngestIssue `json:"issues,omitempty"`
}

func (r *IngestReport) issue(entity EntityType, id string, index int, format string, args ...any) {
	r.Issues = append(r.Issues, IngestIssue{Entity: entity, ID: id, Index: index, Reason: fmt.Sprintf(format, args...)})
}

// Normalize parses the raw batch into typed records and applies
// NormalizeSnapshot. Unparseable birth dates leave BirthDate unset rather than
// rejecting the subject.
func (b RecordBatch) Normalize() (HerdSnapshot, IngestReport) {
	var report IngestReport
	var typed HerdSnapshot
	for i, raw := range b.Subjects {
		subject := Subject{
			ID:            raw.ID,
			Name:          raw.Name,
			Sex:           Sex(strings.ToLower(strings.TrimSpace(raw.Sex))),
			BirthWeightKg: raw.BirthWeightKg,
			Stage:         LifecycleStage(strings.ToLower(strings.TrimSpace(raw.Stage))),
			Reference:     raw.Reference,
			Pregnant:      raw.Pregnant,
			Location:      raw.Location,
		}
		if strings.TrimSpace(raw.BirthDate) != "" {
			if day, err := ParseDay(raw.BirthDate); err == nil {
				subject.BirthDate = &day
			} else {
				report.UnparsedBirthDate++
				report.issue(EntitySubject, raw.ID, i, "birth date ignored: %v", err)
			}
		}
		typed.Subjects = append(typed.Subjects, subject)
	}
	for i, raw := range b.Measurements {
		day, err := ParseDay(raw.Date)
		if err != nil {
			report.issue(EntityMeasurement, raw.ID, i, "invalid date: %v", err)
			continue
		}
		event := MeasurementEvent{
			ID:        raw.ID,
			SubjectID: raw.SubjectID,
			Date:      day,
			Kg:        raw.Kg,
			Category:  MeasurementCategory(strings.ToLower(strings.TrimSpace(raw.Category))),
		}
		if raw.RecordedAt != "" {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.RecordedAt)); err == nil {
				event.RecordedAt = ts.UTC()
			}
		}
		typed.Measurements = append(typed.Measurements, event)
	}
	for i, raw := range b.Lactations {
		day, err := ParseDay(raw.Start)
		if err != nil {
			report.issue(EntityLactation, raw.ID, i, "invalid start date: %v", err)
			continue
		}
		typed.Lactations = append(typed.Lactations, LactationEvent{
			ID:        raw.ID,
			SubjectID: raw.SubjectID,
			Start:     day,
			Status:    LactationStatus(strings.ToLower(strings.TrimSpace(raw.Status))),
		})
	}
	snapshot, normReport := NormalizeSnapshot(typed)
	normReport.UnparsedBirthDate += report.UnparsedBirthDate
	normReport.Issues = append(report.Issues, normReport.Issues...)
	return snapshot, normReport
}

// NormalizeSnapshot validates typed records and returns a snapshot the engine
// can consume directly. Invalid records are excluded and reported; same-day
// re-entries collapse to the latest recorded one; at most one lactation per
// subject stays open.
func NormalizeSnapshot(in HerdSnapshot) (HerdSnapshot, IngestReport) {
	var report IngestReport
	out := HerdSnapshot{
		Subjects:     normalizeSubjects(in.Subjects, &report),
		Measurements: normalizeMeasurements(in.Measurements, &report),
		Lactations:   normalizeLactations(in.Lactations, &report),
	}
	report.Subjects = len(out.Subjects)
	report.Measurements = len(out.Measurements)
	report.Lactations = len(out.Lactations)
	return out, report
}

func normalizeSubjects(in []Subject, report *IngestReport) []Subject {
	byID := make(map[string]Subject, len(in))
	for i, subject := range in {
		subject.ID = strings.TrimSpace(subject.ID)
		if subject.ID == "" {
			report.issue(EntitySubject, "", i, "missing id")
			continue
		}
		switch subject.Sex {
		case SexFemale, SexMale, SexUnknown:
		case "":
			subject.Sex = SexUnknown
		default:
			report.issue(EntitySubject, subject.ID, i, "unknown sex %q", subject.Sex)
			continue
		}
		switch subject.Stage {
		case "", StageCalf, StageHeifer, StageLactating, StageDry, StageBull, StageCulled:
		default:
			report.issue(EntitySubject, subject.ID, i, "unknown stage %q", subject.Stage)
			continue
		}
		if subject.BirthDate != nil {
			day := Day(*subject.BirthDate)
			subject.BirthDate = &day
		}
		if subject.BirthWeightKg != nil && (*subject.BirthWeightKg <= 0 || math.IsNaN(*subject.BirthWeightKg)) {
			report.issue(EntitySubject, subject.ID, i, "birth weight %v ignored", *subject.BirthWeightKg)
			subject.BirthWeightKg = nil
		}
		if _, dup := byID[subject.ID]; dup {
			report.issue(EntitySubject, subject.ID, i, "duplicate id, later record kept")
		}
		byID[subject.ID] = subject
	}
	out := make([]Subject, 0, len(byID))
	for _, subject := range byID {
		out = append(out, subject)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type measurementKey struct {
	subject  string
	category MeasurementCategory
	day      time.Time
}

// supersedes reports whether a same-day re-entry replaces the event seen
// before it. Entry timestamps decide when both are known; otherwise the later
// input wins.
func supersedes(next, prev MeasurementEvent) bool {
	if next.RecordedAt.IsZero() || prev.RecordedAt.IsZero() {
		return true
	}
	return !next.RecordedAt.Before(prev.RecordedAt)
}

func normalizeMeasurements(in []MeasurementEvent, report *IngestReport) []MeasurementEvent {
	latest := make(map[measurementKey]MeasurementEvent, len(in))
	for i, event := range in {
		event.SubjectID = strings.TrimSpace(event.SubjectID)
		event.ID = strings.TrimSpace(event.ID)
		if event.SubjectID == "" {
			report.issue(EntityMeasurement, event.ID, i, "missing subject id")
			continue
		}
		switch event.Category {
		case CategoryMilkYield, CategoryBodyWeight:
		default:
			report.issue(EntityMeasurement, event.ID, i, "unknown category %q", event.Category)
			continue
		}
		if event.Date.IsZero() {
			report.issue(EntityMeasurement, event.ID, i, "missing date")
			continue
		}
		if event.Kg < 0 || math.IsNaN(event.Kg) || math.IsInf(event.Kg, 0) {
			report.issue(EntityMeasurement, event.ID, i, "invalid quantity %v", event.Kg)
			continue
		}
		event.Date = Day(event.Date)
		if event.ID == "" {
			event.ID = fmt.Sprintf("%s:%s:%s", event.SubjectID, event.Category, event.Date.Format("2006-01-02"))
		}
		key := measurementKey{subject: event.SubjectID, category: event.Category, day: event.Date}
		if prev, ok := latest[key]; ok {
			report.Superseded++
			if !supersedes(event, prev) {
				continue
			}
		}
		latest[key] = event
	}
	out := make([]MeasurementEvent, 0, len(latest))
	for _, event := range latest {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
	return out
}

func normalizeLactations(in []LactationEvent, report *IngestReport) []LactationEvent {
	out := make([]LactationEvent, 0, len(in))
	for i, lactation := range in {
		lactation.SubjectID = strings.TrimSpace(lactation.SubjectID)
		if lactation.SubjectID == "" {
			report.issue(EntityLactation, lactation.ID, i, "missing subject id")
			continue
		}
		switch lactation.Status {
		case LactationActive, LactationDrying, LactationDry, LactationClosed:
		default:
			report.issue(EntityLactation, lactation.ID, i, "unknown status %q", lactation.Status)
			continue
		}
		if lactation.Start.IsZero() {
			report.issue(EntityLactation, lactation.ID, i, "missing start date")
			continue
		}
		lactation.Start = Day(lactation.Start)
		if lactation.ID == "" {
			lactation.ID = fmt.Sprintf("%s:%s", lactation.SubjectID, lactation.Start.Format("2006-01-02"))
		}
		out = append(out, lactation)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].Start.Before(out[j].Start)
	})
	// Walk each subject's lactations newest first; only the newest open one stays open.
	for i := len(out) - 1; i >= 0; {
		subject := out[i].SubjectID
		openSeen := false
		for ; i >= 0 && out[i].SubjectID == subject; i-- {
			if !out[i].Open() {
				continue
			}
			if openSeen {
				out[i].Status = LactationClosed
				report.ClosedLactations++
				report.issue(EntityLactation, out[i].ID, i, "closed: subject %s has a newer open lactation", subject)
				continue
			}
			openSeen = true
		}
	}
	return out
}
