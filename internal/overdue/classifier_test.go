package overdue

import (
	"testing"
	"time"

	"backlogwatch/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ticketAged(severity, status string, createdAgo, updatedAgo time.Duration) domain.Ticket {
	return domain.Ticket{
		ID:            "T-1",
		Status:        status,
		Severity:      severity,
		CreatedAt:     testNow.Add(-createdAgo),
		LastUpdatedAt: testNow.Add(-updatedAgo),
	}
}

func assertNone(t *testing.T, got Info) {
	t.Helper()
	if got.IsOverdue || got.Level != LevelNone || got.HoursOverdue != 0 || got.DaysOverdue != 0 {
		t.Fatalf("expected all-zero none result, got %+v", got)
	}
}

func TestClassifyClosedStatusNeverOverdue(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	for _, status := range []string{"Fermé", "CLOSED", " clot ", "Résolu", "closed"} {
		t.Run(status, func(t *testing.T) {
			got := c.Classify(ticketAged("1", status, 2000*time.Hour, 1500*time.Hour), testNow)
			assertNone(t, got)
		})
	}
}

func TestClassifyInvalidDates(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	tests := []struct {
		name   string
		ticket domain.Ticket
	}{
		{name: "missing created", ticket: domain.Ticket{Status: "open", Severity: "1", LastUpdatedAt: testNow.Add(-100 * time.Hour)}},
		{name: "missing updated", ticket: domain.Ticket{Status: "open", Severity: "1", CreatedAt: testNow.Add(-100 * time.Hour)}},
		{name: "both missing", ticket: domain.Ticket{Status: "open", Severity: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNone(t, c.Classify(tt.ticket, testNow))
		})
	}
}

func TestClassifyTimeBands(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	tests := []struct {
		name      string
		severity  string
		age       time.Duration
		wantLevel Level
		wantHours float64
		wantDays  float64
	}{
		{name: "sev1 warning", severity: "1", age: 5 * time.Hour, wantLevel: LevelWarning, wantHours: 5, wantDays: 0},
		{name: "sev1 critical", severity: "1", age: 12 * time.Hour, wantLevel: LevelCritical, wantHours: 12, wantDays: 0},
		{name: "sev1 severe", severity: "1", age: 25 * time.Hour, wantLevel: LevelSevere, wantHours: 25, wantDays: 1},
		{name: "sev2 warning", severity: "2", age: 8 * time.Hour, wantLevel: LevelWarning, wantHours: 8, wantDays: 0},
		{name: "sev3 critical", severity: "3", age: 100 * time.Hour, wantLevel: LevelCritical, wantHours: 100, wantDays: 4},
		{name: "default severe", severity: "4", age: 400 * time.Hour, wantLevel: LevelSevere, wantHours: 400, wantDays: 16},
		{name: "blank severity uses default", severity: "", age: 50 * time.Hour, wantLevel: LevelWarning, wantHours: 50, wantDays: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ticketAged(tt.severity, "open", tt.age, tt.age), testNow)
			if !got.IsOverdue {
				t.Fatalf("expected overdue, got %+v", got)
			}
			if got.Level != tt.wantLevel {
				t.Fatalf("level = %s, want %s", got.Level, tt.wantLevel)
			}
			if got.HoursOverdue != tt.wantHours || got.DaysOverdue != tt.wantDays {
				t.Fatalf("magnitude = %vh/%vd, want %vh/%vd", got.HoursOverdue, got.DaysOverdue, tt.wantHours, tt.wantDays)
			}
		})
	}
}

func TestClassifyTimeBandBeatsStagnant(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	// Created 48h ago, last touched 1h ago: 47h gap is stagnant, but the
	// 48h age already crosses the severity 3 warning mark.
	got, ruleName := c.classify(ticketAged("3", "open", 48*time.Hour, time.Hour), testNow)
	if ruleName != "time-band" {
		t.Fatalf("expected time-band rule, got %q", ruleName)
	}
	if got.Level != LevelWarning {
		t.Fatalf("expected warning, got %s", got.Level)
	}
	if got.HoursOverdue != 48 {
		t.Fatalf("expected magnitude from age (48h), got %v", got.HoursOverdue)
	}
}

func TestClassifyStagnantOnly(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	// Default severity warns at 48h. Created 40h ago, updated 10h ago: gap 30h.
	got, ruleName := c.classify(ticketAged("", "open", 40*time.Hour, 10*time.Hour), testNow)
	if ruleName != "stagnant" {
		t.Fatalf("expected stagnant rule, got %q", ruleName)
	}
	if !got.IsOverdue || got.Level != LevelStagnant {
		t.Fatalf("expected stagnant overdue, got %+v", got)
	}
	if got.HoursOverdue != 30 || got.DaysOverdue != 1 {
		t.Fatalf("expected gap magnitude 30h/1d, got %vh/%vd", got.HoursOverdue, got.DaysOverdue)
	}
}

func TestClassifyNotOverdue(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	// Created 10h ago, updated 9h after creation: 9h gap, 10h age, default warns at 48h.
	got, ruleName := c.classify(ticketAged("", "open", 10*time.Hour, time.Hour), testNow)
	if ruleName != "on-time" {
		t.Fatalf("expected on-time rule, got %q", ruleName)
	}
	assertNone(t, got)
}

func TestClassifyGapExactlyAtLimitIsNotStagnant(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	got := c.Classify(ticketAged("", "open", 30*time.Hour, 6*time.Hour), testNow)
	assertNone(t, got)
}

func TestClassifyFutureTimestampsClampToZero(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	got := c.Classify(ticketAged("1", "open", -5*time.Hour, -5*time.Hour), testNow)
	assertNone(t, got)
}

func TestClassifyWithInjectedThresholds(t *testing.T) {
	table, err := DefaultThresholds().WithOverrides(map[string]Thresholds{
		"1":       {Warning: 1, Critical: 2, Severe: 3},
		"default": {Warning: 100, Critical: 200, Severe: 300},
	})
	if err != nil {
		t.Fatalf("WithOverrides failed: %v", err)
	}
	c := NewClassifier(table)

	if got := c.Classify(ticketAged("1", "open", 2*time.Hour, 2*time.Hour), testNow); got.Level != LevelCritical {
		t.Fatalf("expected critical with overridden sev1 table, got %s", got.Level)
	}
	if got := c.Classify(ticketAged("9", "open", 60*time.Hour, 60*time.Hour), testNow); got.IsOverdue {
		t.Fatalf("expected overridden default to keep 60h ticket on time, got %+v", got)
	}
	if got := c.Classify(ticketAged("2", "open", 9*time.Hour, 9*time.Hour), testNow); got.Level != LevelWarning {
		t.Fatalf("expected untouched sev2 row, got %s", got.Level)
	}
}

func TestWithOverridesRejectsUnorderedBands(t *testing.T) {
	_, err := DefaultThresholds().WithOverrides(map[string]Thresholds{
		"1": {Warning: 10, Critical: 5, Severe: 20},
	})
	if err == nil {
		t.Fatal("expected WithOverrides to reject critical < warning")
	}
	if _, err := DefaultThresholds().WithOverrides(map[string]Thresholds{"2": {}}); err == nil {
		t.Fatal("expected WithOverrides to reject zero warning")
	}
}

func TestFilterOverdueAndSortByUrgency(t *testing.T) {
	c := NewClassifier(DefaultThresholds())
	tickets := []domain.Ticket{
		{ID: "warn", Status: "open", Severity: "1", CreatedAt: testNow.Add(-5 * time.Hour), LastUpdatedAt: testNow.Add(-5 * time.Hour)},
		{ID: "closed", Status: "closed", Severity: "1", CreatedAt: testNow.Add(-500 * time.Hour), LastUpdatedAt: testNow.Add(-500 * time.Hour)},
		{ID: "severe", Status: "open", Severity: "1", CreatedAt: testNow.Add(-30 * time.Hour), LastUpdatedAt: testNow.Add(-30 * time.Hour)},
		{ID: "stagnant", Status: "open", Severity: "", CreatedAt: testNow.Add(-40 * time.Hour), LastUpdatedAt: testNow.Add(-10 * time.Hour)},
		{ID: "fresh", Status: "open", Severity: "3", CreatedAt: testNow.Add(-time.Hour), LastUpdatedAt: testNow.Add(-time.Hour)},
		{ID: "severe-older", Status: "open", Severity: "1", CreatedAt: testNow.Add(-90 * time.Hour), LastUpdatedAt: testNow.Add(-90 * time.Hour)},
	}

	overdue := c.FilterOverdue(tickets, testNow)
	gotIDs := idsOf(overdue)
	wantIDs := []string{"warn", "severe", "stagnant", "severe-older"}
	if !equalStrings(gotIDs, wantIDs) {
		t.Fatalf("FilterOverdue ids = %v, want %v", gotIDs, wantIDs)
	}

	SortByUrgency(overdue)
	gotIDs = idsOf(overdue)
	wantIDs = []string{"severe-older", "severe", "warn", "stagnant"}
	if !equalStrings(gotIDs, wantIDs) {
		t.Fatalf("SortByUrgency ids = %v, want %v", gotIDs, wantIDs)
	}
}

func TestLevelRank(t *testing.T) {
	order := []Level{LevelNone, LevelStagnant, LevelWarning, LevelCritical, LevelSevere}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
}

func idsOf(items []Evaluated) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
