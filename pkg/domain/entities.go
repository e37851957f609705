// Package domain defines the herd records consumed by the analytics engine,
// their value types, and the normalisation applied at the ingestion boundary.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the herd record store.
type EntityType string

// Supported entity type identifiers used in errors and persistence buckets.
const (
	// EntitySubject identifies an individual animal record.
	EntitySubject EntityType = "subject"
	// EntityMeasurement identifies a measurement event record.
	EntityMeasurement EntityType = "measurement"
	// EntityLactation identifies a lactation event record.
	EntityLactation EntityType = "lactation"
)

// Sex of a subject. Growth targets may be configured per sex.
type Sex string

// Recognised sexes.
const (
	SexFemale  Sex = "female"
	SexMale    Sex = "male"
	SexUnknown Sex = "unknown"
)

// LifecycleStage represents the production stage of a subject.
type LifecycleStage string

// Canonical lifecycle stages.
const (
	StageCalf      LifecycleStage = "calf"
	StageHeifer    LifecycleStage = "heifer"
	StageLactating LifecycleStage = "lactating"
	StageDry       LifecycleStage = "dry"
	StageBull      LifecycleStage = "bull"
	StageCulled    LifecycleStage = "culled"
)

// MeasurementCategory distinguishes the quantity a measurement event records.
type MeasurementCategory string

// Supported measurement categories.
const (
	CategoryMilkYield  MeasurementCategory = "milk_yield"
	CategoryBodyWeight MeasurementCategory = "body_weight"
)

// LactationStatus enumerates lactation lifecycle states.
type LactationStatus string

// Canonical lactation statuses. Only one non-closed lactation may exist per subject.
const (
	LactationActive LactationStatus = "active"
	LactationDrying LactationStatus = "drying"
	LactationDry    LactationStatus = "dry"
	LactationClosed LactationStatus = "closed"
)

// Subject represents an individual animal tracked by the herd.
type Subject struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Sex           Sex            `json:"sex"`
	BirthDate     *time.Time     `json:"birth_date,omitempty"`
	BirthWeightKg *float64       `json:"birth_weight_kg,omitempty"`
	Stage         LifecycleStage `json:"stage"`
	// Reference subjects are excluded from production classification.
	Reference bool   `json:"reference"`
	Pregnant  bool   `json:"pregnant"`
	Location  string `json:"location,omitempty"`
}

// MeasurementEvent is a single dated quantity recorded for a subject.
type MeasurementEvent struct {
	ID         string              `json:"id"`
	SubjectID  string              `json:"subject_id"`
	Date       time.Time           `json:"date"`
	Kg         float64             `json:"kg"`
	Category   MeasurementCategory `json:"category"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// LactationEvent marks the start of a lactation and its current status.
type LactationEvent struct {
	ID        string          `json:"id"`
	SubjectID string          `json:"subject_id"`
	Start     time.Time       `json:"start"`
	Status    LactationStatus `json:"status"`
}

// Open reports whether the lactation is not yet closed.
func (l LactationEvent) Open() bool {
	return l.Status != LactationClosed
}

// HerdSnapshot is an immutable point-in-time view of the herd records.
type HerdSnapshot struct {
	Subjects     []Subject          `json:"subjects"`
	Measurements []MeasurementEvent `json:"measurements"`
	Lactations   []LactationEvent   `json:"lactations"`
}

// Clone returns a deep copy of the snapshot.
func (s HerdSnapshot) Clone() HerdSnapshot {
	out := HerdSnapshot{
		Subjects:     make([]Subject, len(s.Subjects)),
		Measurements: append([]MeasurementEvent(nil), s.Measurements...),
		Lactations:   append([]LactationEvent(nil), s.Lactations...),
	}
	for i, subject := range s.Subjects {
		if subject.BirthDate != nil {
			d := *subject.BirthDate
			subject.BirthDate = &d
		}
		if subject.BirthWeightKg != nil {
			w := *subject.BirthWeightKg
			subject.BirthWeightKg = &w
		}
		out.Subjects[i] = subject
	}
	return out
}

// Subject returns the subject with the given id.
func (s HerdSnapshot) Subject(id string) (Subject, bool) {
	for _, subject := range s.Subjects {
		if subject.ID == id {
			return subject, true
		}
	}
	return Subject{}, false
}

// MeasurementsFor returns the events of one category for a subject, in input order.
func (s HerdSnapshot) MeasurementsFor(subjectID string, category MeasurementCategory) []MeasurementEvent {
	var out []MeasurementEvent
	for _, event := range s.Measurements {
		if event.SubjectID == subjectID && event.Category == category {
			out = append(out, event)
		}
	}
	return out
}

// MeasurementsByCategory returns every event of the category, in input order.
func (s HerdSnapshot) MeasurementsByCategory(category MeasurementCategory) []MeasurementEvent {
	var out []MeasurementEvent
	for _, event := range s.Measurements {
		if event.Category == category {
			out = append(out, event)
		}
	}
	return out
}

// ErrNotFound indicates the requested record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
