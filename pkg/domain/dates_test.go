package domain

import (
	"testing"
	"time"
)

func TestParseDayLayouts(t *testing.T) {
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-03-05", "2024-03-05T17:45:00Z", "2024-03-05T08:00:00", "05/03/2024", " 2024-03-05 "} {
		got, err := ParseDay(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
	}
	for _, raw := range []string{"", "yesterday", "2024-13-01"} {
		if _, err := ParseDay(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestDaysBetweenAndPeriodKey(t *testing.T) {
	a := time.Date(2024, time.February, 28, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.March, 1, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 2 {
		t.Fatalf("expected 2 days across leap day, got %d", got)
	}
	if got := DaysBetween(b, a); got != -2 {
		t.Fatalf("expected -2, got %d", got)
	}
	if got := PeriodKey(b); got != "2024-03" {
		t.Fatalf("expected 2024-03, got %s", got)
	}
}
