package analytics

import (
	"sort"

	"herdcore/pkg/domain"
)

// PeriodBucket aggregates one calendar month of measurements.
type PeriodBucket struct {
	Period       string                    `json:"period"`
	TotalKg      float64                   `json:"total_kg"`
	EventCount   int                       `json:"event_count"`
	AverageKg    float64                   `json:"average_kg"`
	SubjectCount int                       `json:"subject_count"`
	DateCount    int                       `json:"date_count"`
	Subjects     []string                  `json:"subjects"`
	Events       []domain.MeasurementEvent `json:"events"`
	// Deltas against the previous (older) period; nil when undefined.
	AvgChangePct          *float64 `json:"avg_change_pct,omitempty"`
	SubjectCountChangePct *float64 `json:"subject_count_change_pct,omitempty"`
	Entering              []string `json:"entering"`
	Exiting               []string `json:"exiting"`
}

// Rollup groups the history into calendar-month buckets, most recent first,
// and computes period-over-period deltas and subject entrants and exits.
// An empty category keeps every event. Each input event lands in exactly one
// bucket.
func Rollup(events []domain.MeasurementEvent, category domain.MeasurementCategory) []PeriodBucket {
	byPeriod := make(map[string]*PeriodBucket)
	subjects := make(map[string]map[string]struct{})
	dates := make(map[string]map[string]struct{})
	for _, event := range sortedByDate(events) {
		if category != "" && event.Category != category {
			continue
		}
		key := domain.PeriodKey(event.Date)
		bucket, ok := byPeriod[key]
		if !ok {
			bucket = &PeriodBucket{Period: key}
			byPeriod[key] = bucket
			subjects[key] = make(map[string]struct{})
			dates[key] = make(map[string]struct{})
		}
		bucket.TotalKg += event.Kg
		bucket.EventCount++
		bucket.Events = append(bucket.Events, event)
		subjects[key][event.SubjectID] = struct{}{}
		dates[key][event.Date.Format("2006-01-02")] = struct{}{}
	}

	out := make([]PeriodBucket, 0, len(byPeriod))
	for key, bucket := range byPeriod {
		bucket.AverageKg = bucket.TotalKg / float64(bucket.EventCount)
		bucket.SubjectCount = len(subjects[key])
		bucket.DateCount = len(dates[key])
		bucket.Subjects = sortedKeys(subjects[key])
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })

	for i := range out {
		cur := &out[i]
		if i == len(out)-1 {
			cur.Entering = append([]string{}, cur.Subjects...)
			cur.Exiting = []string{}
			continue
		}
		prev := out[i+1]
		cur.AvgChangePct = pctChange(cur.AverageKg, prev.AverageKg)
		cur.SubjectCountChangePct = pctChange(float64(cur.SubjectCount), float64(prev.SubjectCount))
		cur.Entering = difference(subjects[cur.Period], subjects[prev.Period])
		cur.Exiting = difference(subjects[prev.Period], subjects[cur.Period])
	}
	return out
}

func pctChange(cur, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := (cur - prev) / prev * 100
	return &v
}

// difference returns the sorted members of a absent from b.
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
