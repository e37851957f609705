package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"herdcore/internal/blob"
	"herdcore/internal/core"
	"herdcore/pkg/analytics"
)

func ptr(v float64) *float64 { return &v }

func sampleReport() core.HerdReport {
	return core.HerdReport{
		GeneratedAt:  time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC),
		AsOf:         time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		SubjectCount: 4,
		Cohort: analytics.CohortClassification{
			Subjects: []analytics.ClassifiedSubject{
				{SubjectID: "cow1", Class: analytics.ClassPoor, RawKg: 2, DaysInMilk: 100, Score: 2},
				{SubjectID: "cow2", Class: analytics.ClassOutstanding, RawKg: 10, DaysInMilk: 100, Score: 10.5},
			},
		},
		Trends: map[string]analytics.TrendResult{
			"cow1": {Direction: analytics.TrendDown, Delta: ptr(-1)},
		},
		Growth: []analytics.GrowthProfile{
			{SubjectID: "calf", AgeDays: 161, CurrentKg: ptr(90), TargetTodayKg: 156.66666},
		},
		Candidates: analytics.CandidateSet{
			SubjectIDs: []string{"late"},
			Reasons:    map[string][]string{"late": {"del_window", "already_drying"}},
		},
		Thresholds: analytics.DefaultThresholds(),
	}
}

func fixedExporter(store blob.Store) *Exporter {
	e := NewExporter(store)
	e.newID = func() string { return "export-1" }
	return e
}

func read(t *testing.T, store blob.Store, key string) string {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(body)
}

func TestExportWritesBothFormats(t *testing.T) {
	store := blob.NewMemory()
	artifacts, err := fixedExporter(store).Export(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected two artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Key != "reports/2024-06-10/export-1.json" || artifacts[1].Key != "reports/2024-06-10/export-1.csv" {
		t.Fatalf("unexpected keys %s / %s", artifacts[0].Key, artifacts[1].Key)
	}
	if artifacts[1].ContentType != "text/csv" || artifacts[0].Checksum == "" || artifacts[0].URL != "" {
		t.Fatalf("unexpected artifact %+v", artifacts[0])
	}
	info, err := store.Head(context.Background(), artifacts[1].Key)
	if err != nil || info.Metadata["export_id"] != "export-1" || info.Metadata["subjects"] != "4" {
		t.Fatalf("unexpected stored metadata %+v (%v)", info, err)
	}

	var decoded core.HerdReport
	if err := json.Unmarshal([]byte(read(t, store, artifacts[0].Key)), &decoded); err != nil {
		t.Fatalf("decode json artifact: %v", err)
	}
	if decoded.SubjectCount != 4 || len(decoded.Cohort.Subjects) != 2 || !decoded.Candidates.Contains("late") {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}

	want := strings.Join([]string{
		strings.Join(CSVHeader, ","),
		"calf,,,,,,,false,,161,90,156.667,",
		"cow1,poor,2,100,2,down,-1,false,,,,,",
		"cow2,outstanding,10,100,10.5,,,false,,,,,",
		"late,,,,,,,true,del_window;already_drying,,,,",
	}, "\n") + "\n"
	if got := read(t, store, artifacts[1].Key); got != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportRejectsDuplicateKeys(t *testing.T) {
	store := blob.NewMemory()
	exporter := fixedExporter(store)
	if _, err := exporter.Export(context.Background(), sampleReport(), FormatCSV); err != nil {
		t.Fatalf("first export: %v", err)
	}
	artifacts, err := exporter.Export(context.Background(), sampleReport(), FormatJSON, FormatCSV)
	if !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Format != FormatJSON {
		t.Fatalf("expected the JSON artifact written before the failure, got %+v", artifacts)
	}
}

func TestExportToFilesystemSignsURLs(t *testing.T) {
	store, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	artifacts, err := NewExporter(store).Export(context.Background(), sampleReport(), FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	name := strings.TrimSuffix(path.Base(artifacts[0].Key), ".json")
	if _, err := uuid.Parse(name); err != nil {
		t.Fatalf("expected uuid export id, got %q", name)
	}
	if artifacts[0].ID != name || !strings.HasPrefix(artifacts[0].URL, "file://") {
		t.Fatalf("unexpected artifact %+v", artifacts[0])
	}
}

func TestFormats(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Fatalf("unexpected parse %q %v", f, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected pdf to be unsupported")
	}
	if _, _, err := Render("xlsx", sampleReport()); err == nil {
		t.Fatalf("expected render of unknown format to fail")
	}
	if _, err := fixedExporter(blob.NewMemory()).Export(context.Background(), sampleReport(), "xlsx"); err == nil {
		t.Fatalf("expected export of unknown format to fail")
	}
}

func TestRenderCSVEmptyReport(t *testing.T) {
	payload, contentType, err := Render(FormatCSV, core.HerdReport{})
	if err != nil || contentType != "text/csv" {
		t.Fatalf("render: %v", err)
	}
	if string(payload) != strings.Join(CSVHeader, ",")+"\n" {
		t.Fatalf("expected header only, got %q", payload)
	}
}
