package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"herdcore/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "herd.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	birth := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Import(ctx, domain.HerdSnapshot{
		Subjects: []domain.Subject{{ID: "a", Sex: domain.SexFemale, BirthDate: &birth}},
		Measurements: []domain.MeasurementEvent{
			{ID: "m1", SubjectID: "a", Date: birth.AddDate(1, 0, 0), Kg: 24, Category: domain.CategoryMilkYield},
		},
		Lactations: []domain.LactationEvent{{ID: "l1", SubjectID: "a", Start: birth.AddDate(0, 11, 0), Status: domain.LactationActive}},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	snap, err := reopened.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Subjects) != 1 || len(snap.Measurements) != 1 || len(snap.Lactations) != 1 {
		t.Fatalf("expected persisted records, got %+v", snap)
	}
	if snap.Subjects[0].BirthDate == nil || !snap.Subjects[0].BirthDate.Equal(birth) {
		t.Fatalf("expected birth date to survive, got %v", snap.Subjects[0].BirthDate)
	}
	var rows int
	if err := reopened.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 3 {
		t.Fatalf("expected 3 buckets, got %d", rows)
	}
}

func TestImportRollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "herd.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Import(ctx, domain.HerdSnapshot{Subjects: []domain.Subject{{ID: "a"}}}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `DROP TABLE state`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := store.Import(ctx, domain.HerdSnapshot{Subjects: []domain.Subject{{ID: "b"}}}); err == nil {
		t.Fatalf("expected persist failure")
	}
	snap, _ := store.Snapshot(ctx)
	if len(snap.Subjects) != 1 || snap.Subjects[0].ID != "a" {
		t.Fatalf("expected in-memory state rolled back, got %+v", snap.Subjects)
	}
	_ = store.Close()
}
