// Package analytics aggregates a backlog into the figures shown on the dashboard.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/overdue"
)

const (
	DefaultTopN = 10
	unknownKey  = "(none)"
)

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Summary struct {
	Total         int                 `json:"total"`
	Open          int                 `json:"open"`
	Closed        int                 `json:"closed"`
	Overdue       int                 `json:"overdue"`
	InvalidDates  int                 `json:"invalid_dates"`
	CreatedThisWk int                 `json:"created_this_week"`
	ByStatus      []Count             `json:"by_status"`
	BySeverity    []Count             `json:"by_severity"`
	ByOwner       []Count             `json:"by_owner"`
	ByRegion      []Count             `json:"by_region"`
	ByCompany     []Count             `json:"by_company"`
	ByCity        []Count             `json:"by_city"`
	BySource      []Count             `json:"by_source"`
	ByLevel       []Count             `json:"by_level"`
	CreatedPerDay []DayCount          `json:"created_per_day"`
	AvgOpenAgeH   float64             `json:"avg_open_age_hours"`
	MaxOpenAgeH   float64             `json:"max_open_age_hours"`
	OldestOverdue []overdue.Evaluated `json:"oldest_overdue"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// Compute builds a Summary of tickets as seen at now. topN bounds
// OldestOverdue; values below 1 use DefaultTopN.
func Compute(tickets []domain.Ticket, c *overdue.Classifier, now time.Time, topN int) Summary {
	if topN < 1 {
		topN = DefaultTopN
	}
	s := Summary{Total: len(tickets), GeneratedAt: now}

	status := map[string]int{}
	severity := map[string]int{}
	owner := map[string]int{}
	region := map[string]int{}
	company := map[string]int{}
	city := map[string]int{}
	source := map[string]int{}
	level := map[string]int{}
	perDay := map[string]int{}

	weekStart, weekEnd := domain.WeekRangeAt(now)
	var openAgeSum float64
	var openAged int
	var overdueItems []overdue.Evaluated

	for _, e := range c.Evaluate(tickets, now) {
		t := e.Ticket
		status[keyOf(t.Status)]++
		severity[keyOf(t.Severity)]++
		owner[keyOf(t.Owner)]++
		region[keyOf(t.Region)]++
		company[keyOf(t.Company)]++
		city[keyOf(t.City)]++
		source[keyOf(t.Source)]++
		level[string(e.Overdue.Level)]++

		if t.CreatedAt.IsZero() || t.LastUpdatedAt.IsZero() {
			s.InvalidDates++
		}
		if !t.CreatedAt.IsZero() {
			created := t.CreatedAt.In(now.Location())
			perDay[created.Format("2006-01-02")]++
			if !created.Before(weekStart) && created.Before(weekEnd) {
				s.CreatedThisWk++
			}
		}

		if c.IsClosed(t.Status) {
			s.Closed++
		} else {
			s.Open++
			if !t.CreatedAt.IsZero() {
				age := math.Max(0, math.Trunc(now.Sub(t.CreatedAt).Hours()))
				openAgeSum += age
				openAged++
				s.MaxOpenAgeH = math.Max(s.MaxOpenAgeH, age)
			}
		}

		if e.Overdue.IsOverdue {
			s.Overdue++
			overdueItems = append(overdueItems, e)
		}
	}

	if openAged > 0 {
		s.AvgOpenAgeH = math.Round(openAgeSum/float64(openAged)*10) / 10
	}

	s.ByStatus = sortedCounts(status)
	s.BySeverity = sortedCounts(severity)
	s.ByOwner = sortedCounts(owner)
	s.ByRegion = sortedCounts(region)
	s.ByCompany = sortedCounts(company)
	s.ByCity = sortedCounts(city)
	s.BySource = sortedCounts(source)
	s.ByLevel = sortedCounts(level)
	s.CreatedPerDay = dayCounts(perDay)

	sort.SliceStable(overdueItems, func(i, j int) bool {
		return overdueItems[i].Overdue.HoursOverdue > overdueItems[j].Overdue.HoursOverdue
	})
	if len(overdueItems) > topN {
		overdueItems = overdueItems[:topN]
	}
	s.OldestOverdue = overdueItems
	return s
}

func keyOf(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return unknownKey
	}
	return v
}

// sortedCounts orders by count descending, then key ascending.
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func dayCounts(m map[string]int) []DayCount {
	out := make([]DayCount, 0, len(m))
	for day, n := range m {
		out = append(out, DayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
