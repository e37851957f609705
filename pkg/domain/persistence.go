package domain

import "context"

// RecordStore is the boundary to the herd record store. The analytics engine
// only ever sees the snapshots it returns.
type RecordStore interface {
	// Snapshot returns a copy of the current normalised records.
	Snapshot(ctx context.Context) (HerdSnapshot, error)
	// Import normalises the supplied records and merges them into the store.
	// Records with an id already present are replaced.
	Import(ctx context.Context, records HerdSnapshot) (IngestReport, error)
}

// MergeSnapshots overlays incoming records on base. Records sharing an id are
// replaced by the incoming version; the result still needs NormalizeSnapshot.
func MergeSnapshots(base, incoming HerdSnapshot) HerdSnapshot {
	return HerdSnapshot{
		Subjects:     mergeByID(base.Subjects, incoming.Subjects, func(s Subject) string { return s.ID }),
		Measurements: mergeByID(base.Measurements, incoming.Measurements, func(m MeasurementEvent) string { return m.ID }),
		Lactations:   mergeByID(base.Lactations, incoming.Lactations, func(l LactationEvent) string { return l.ID }),
	}
}

func mergeByID[T any](base, incoming []T, id func(T) string) []T {
	replaced := make(map[string]struct{}, len(incoming))
	for _, item := range incoming {
		if key := id(item); key != "" {
			replaced[key] = struct{}{}
		}
	}
	out := make([]T, 0, len(base)+len(incoming))
	for _, item := range base {
		if _, ok := replaced[id(item)]; ok {
			continue
		}
		out = append(out, item)
	}
	return append(out, incoming...)
}
