package domain

import (
	"testing"
	"time"
)

func TestWeekRangeAt(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		from string
		to   string
	}{
		{name: "monday", now: time.Date(2026, 2, 9, 9, 0, 0, 0, loc), from: "20260209", to: "20260216"},
		{name: "friday", now: time.Date(2026, 2, 13, 18, 0, 0, 0, loc), from: "20260209", to: "20260216"},
		{name: "sunday belongs to previous monday", now: time.Date(2026, 2, 15, 23, 0, 0, 0, loc), from: "20260209", to: "20260216"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := WeekRangeAt(tt.now)
			if from.Format("20060102") != tt.from || to.Format("20060102") != tt.to {
				t.Fatalf("WeekRangeAt(%s) = %s -> %s, want %s -> %s",
					tt.now, from.Format("20060102"), to.Format("20060102"), tt.from, tt.to)
			}
		})
	}
}

func TestIsKnownSource(t *testing.T) {
	if !IsKnownSource("jira") {
		t.Fatal("expected jira to be a known source")
	}
	if IsKnownSource("mantis") {
		t.Fatal("did not expect mantis to be a known source")
	}
}
