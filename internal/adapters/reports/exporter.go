// Package reports renders herd reports into downloadable artifacts and
// writes them to the configured blob store.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"herdcore/internal/blob"
	"herdcore/internal/core"
	"herdcore/pkg/analytics"
)

// Format is an artifact rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DefaultFormats is used when Export receives no formats.
func DefaultFormats() []Format { return []Format{FormatJSON, FormatCSV} }

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Artifact describes one stored rendering.
type Artifact struct {
	ID          string            `json:"id"`
	Format      Format            `json:"format"`
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	Checksum    string            `json:"checksum,omitempty"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Exporter writes report renderings to a blob store under
// reports/<as-of date>/<export id>.<format>.
type Exporter struct {
	store     blob.Store
	urlExpiry time.Duration
	newID     func() string
}

// NewExporter constructs an exporter over store.
func NewExporter(store blob.Store) *Exporter {
	return &Exporter{store: store, urlExpiry: time.Hour, newID: uuid.NewString}
}

// Export renders the report in each format. All artifacts of one call share
// an export id. Artifacts written before a failure are left in place and
// returned alongside the error.
func (e *Exporter) Export(ctx context.Context, report core.HerdReport, formats ...Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	id := e.newID()
	day := report.AsOf.Format("2006-01-02")
	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		payload, contentType, err := Render(format, report)
		if err != nil {
			return artifacts, err
		}
		key := fmt.Sprintf("reports/%s/%s.%s", day, id, format)
		meta := map[string]string{
			"export_id": id,
			"as_of":     day,
			"format":    string(format),
			"subjects":  strconv.Itoa(report.SubjectCount),
		}
		info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: meta})
		if err != nil {
			return artifacts, fmt.Errorf("store %s: %w", key, err)
		}
		artifact := Artifact{
			ID:          id,
			Format:      format,
			Key:         info.Key,
			ContentType: contentType,
			SizeBytes:   info.Size,
			Checksum:    info.Checksum,
			URL:         info.URL,
			Metadata:    meta,
			CreatedAt:   info.LastModified,
		}
		if url, err := e.store.PresignURL(ctx, info.Key, e.urlExpiry); err == nil {
			artifact.URL = url
		} else if !errors.Is(err, blob.ErrUnsupported) {
			return artifacts, fmt.Errorf("sign %s: %w", key, err)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// Render produces the payload and content type of one format.
func Render(format Format, report core.HerdReport) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		payload, err := renderCSV(report)
		if err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		return payload, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

// CSVHeader lists the columns of the per-subject CSV rendering.
var CSVHeader = []string{
	"subject_id", "class", "raw_kg", "days_in_milk", "score",
	"trend", "trend_delta_kg", "dry_off_candidate", "dry_off_reasons",
	"age_days", "current_kg", "target_today_kg", "growth_score",
}

// renderCSV writes one row per subject appearing in any section of the
// report, ordered by subject id. Sections a subject is absent from leave
// their columns empty.
func renderCSV(report core.HerdReport) ([]byte, error) {
	cohort := make(map[string]analytics.ClassifiedSubject, len(report.Cohort.Subjects))
	growth := make(map[string]analytics.GrowthProfile, len(report.Growth))
	ids := make(map[string]struct{})
	for _, s := range report.Cohort.Subjects {
		cohort[s.SubjectID] = s
		ids[s.SubjectID] = struct{}{}
	}
	for _, g := range report.Growth {
		growth[g.SubjectID] = g
		ids[g.SubjectID] = struct{}{}
	}
	for id := range report.Trends {
		ids[id] = struct{}{}
	}
	for _, id := range report.Candidates.SubjectIDs {
		ids[id] = struct{}{}
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, id := range ordered {
		row := make([]string, len(CSVHeader))
		row[0] = id
		if s, ok := cohort[id]; ok {
			row[1] = string(s.Class)
			row[2] = num(s.RawKg)
			row[3] = strconv.Itoa(s.DaysInMilk)
			row[4] = num(s.Score)
		}
		if tr, ok := report.Trends[id]; ok {
			row[5] = string(tr.Direction)
			if tr.Delta != nil {
				row[6] = num(*tr.Delta)
			}
		}
		row[7] = strconv.FormatBool(report.Candidates.Contains(id))
		row[8] = strings.Join(report.Candidates.Reasons[id], ";")
		if g, ok := growth[id]; ok {
			row[9] = strconv.Itoa(g.AgeDays)
			row[10] = optNum(g.CurrentKg)
			row[11] = num(g.TargetTodayKg)
			row[12] = optNum(g.Score)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// num rounds to three decimals and drops trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}
