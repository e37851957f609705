// Package memory provides the in-memory herd record store. The SQLite and
// Postgres stores embed it and persist its state after each import.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"herdcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.RecordStore = (*Store)(nil)

// Bucket names used by persistent stores, one JSON payload per entity type.
const (
	BucketSubjects     = "subjects"
	BucketMeasurements = "measurements"
	BucketLactations   = "lactations"
)

// Buckets lists the persisted bucket names in write order.
func Buckets() []string {
	return []string{BucketSubjects, BucketMeasurements, BucketLactations}
}

// Store keeps a normalised herd snapshot guarded by a read/write lock.
type Store struct {
	mu    sync.RWMutex
	state domain.HerdSnapshot
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot implements domain.RecordStore.
func (s *Store) Snapshot(ctx context.Context) (domain.HerdSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.HerdSnapshot{}, err
	}
	return s.ExportState(), nil
}

// Import implements domain.RecordStore. The incoming records are normalised on
// their own first so the report describes this import; the merged state is
// then normalised again so cross-import duplicates and open lactations are
// resolved.
func (s *Store) Import(ctx context.Context, records domain.HerdSnapshot) (domain.IngestReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.IngestReport{}, err
	}
	incoming, report := domain.NormalizeSnapshot(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, mergeReport := domain.NormalizeSnapshot(domain.MergeSnapshots(s.state, incoming))
	report.Superseded += mergeReport.Superseded
	report.ClosedLactations += mergeReport.ClosedLactations
	report.Issues = append(report.Issues, mergeReport.Issues...)
	s.state = merged
	return report, nil
}

// ExportState returns a deep copy of the stored snapshot.
func (s *Store) ExportState() domain.HerdSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportState replaces the stored snapshot without normalising it. Persistent
// stores use it to hydrate state they wrote themselves.
func (s *Store) ImportState(snapshot domain.HerdSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = snapshot.Clone()
}

// EncodeBuckets renders a snapshot as one JSON payload per bucket.
func EncodeBuckets(snapshot domain.HerdSnapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, 3)
	for bucket, value := range map[string]any{
		BucketSubjects:     nonNil(snapshot.Subjects),
		BucketMeasurements: nonNil(snapshot.Measurements),
		BucketLactations:   nonNil(snapshot.Lactations),
	} {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals one bucket payload into the snapshot. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(snapshot *domain.HerdSnapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketSubjects:
		target = &snapshot.Subjects
	case BucketMeasurements:
		target = &snapshot.Measurements
	case BucketLactations:
		target = &snapshot.Lactations
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
