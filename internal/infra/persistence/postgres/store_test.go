package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"herdcore/internal/infra/persistence/memory"
	"herdcore/internal/infra/persistence/postgres/testutil"
	"herdcore/pkg/domain"
)

func withStub(t *testing.T) *testutil.StubConn {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("expected pgx driver, got %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	return conn
}

func sampleSnapshot() domain.HerdSnapshot {
	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	return domain.HerdSnapshot{
		Subjects:     []domain.Subject{{ID: "a", Sex: domain.SexFemale}},
		Measurements: []domain.MeasurementEvent{{ID: "m1", SubjectID: "a", Date: start.AddDate(0, 1, 0), Kg: 31, Category: domain.CategoryMilkYield}},
		Lactations:   []domain.LactationEvent{{ID: "l1", SubjectID: "a", Start: start, Status: domain.LactationActive}},
	}
}

func TestNewStoreCreatesTableAndLoadsBuckets(t *testing.T) {
	conn := withStub(t)
	buckets, err := memory.EncodeBuckets(sampleSnapshot())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, bucket := range memory.Buckets() {
		conn.Tables["state"] = append(conn.Tables["state"], map[string]any{"bucket": bucket, "payload": buckets[bucket]})
	}

	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table DDL, got %v", conn.Execs)
	}
	snap, _ := store.Snapshot(context.Background())
	if len(snap.Subjects) != 1 || len(snap.Measurements) != 1 || len(snap.Lactations) != 1 {
		t.Fatalf("expected hydrated snapshot, got %+v", snap)
	}
}

func TestImportUpsertsEveryBucket(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore(context.Background(), "postgres://ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.Import(context.Background(), sampleSnapshot()); err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
	}
	rows := conn.Rows("state")
	if len(rows) != 3 {
		t.Fatalf("expected one row per bucket after repeated imports, got %d", len(rows))
	}
	for _, row := range rows {
		if row["bucket"] == memory.BucketSubjects && !strings.Contains(string(row["payload"].([]byte)), `"id":"a"`) {
			t.Fatalf("unexpected subjects payload %s", row["payload"])
		}
	}
}

func TestImportRestoresStateOnWriteFailure(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailCommit = true
	if _, err := store.Import(context.Background(), sampleSnapshot()); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	snap, _ := store.Snapshot(context.Background())
	if len(snap.Subjects) != 0 {
		t.Fatalf("expected rollback of in-memory state, got %+v", snap.Subjects)
	}
	conn.FailCommit = false
	conn.FailTables = map[string]bool{"state": true}
	if _, err := store.Import(context.Background(), sampleSnapshot()); err == nil || !strings.Contains(err.Error(), "upsert subjects") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
	conn.FailTables = nil
	conn.FailBegin = true
	if _, err := store.Import(context.Background(), sampleSnapshot()); err == nil {
		t.Fatalf("expected begin failure")
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	conn := withStub(t)
	conn.FailPing = true
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
	conn.FailPing = false
	conn.FailExec = true
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "state table") {
		t.Fatalf("expected ddl error, got %v", err)
	}
	conn.FailExec = false
	conn.Tables["state"] = []map[string]any{{"bucket": memory.BucketSubjects, "payload": []byte("{")}}
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "decode subjects") {
		t.Fatalf("expected decode error, got %v", err)
	}
	conn.Tables["state"] = nil
	conn.RowsErr = errors.New("cursor")
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "iterate") {
		t.Fatalf("expected iteration error, got %v", err)
	}
}
