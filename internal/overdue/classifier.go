// Package overdue decides how late a ticket is relative to its severity.
//
// Classification is a pure function of a ticket and an instant. Results are
// never stored; they are recomputed by the reporting view and by the alert
// notifier each time they are needed.
package overdue

import (
	"math"
	"sort"
	"strings"
	"time"

	"backlogwatch/internal/domain"
)

type Level string

const (
	LevelNone     Level = "none"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelSevere   Level = "severe"
	LevelStagnant Level = "stagnant"
)

// Rank orders levels for display: severe first, none last.
func (l Level) Rank() int {
	switch l {
	case LevelSevere:
		return 4
	case LevelCritical:
		return 3
	case LevelWarning:
		return 2
	case LevelStagnant:
		return 1
	default:
		return 0
	}
}

type Info struct {
	IsOverdue    bool    `json:"is_overdue"`
	Level        Level   `json:"level"`
	HoursOverdue float64 `json:"hours_overdue"`
	DaysOverdue  float64 `json:"days_overdue"`
}

var notOverdue = Info{Level: LevelNone}

// DefaultClosedStatuses is matched against the lower-cased, trimmed status.
var DefaultClosedStatuses = []string{"fermé", "closed", "clot", "résolu"}

// DefaultStagnantAfter is the creation-to-update gap (hours) above which a ticket is stagnant.
const DefaultStagnantAfter = 24

type Classifier struct {
	Thresholds     ThresholdTable
	ClosedStatuses []string
	StagnantAfter  float64
}

func NewClassifier(table ThresholdTable) *Classifier {
	return &Classifier{
		Thresholds:     table,
		ClosedStatuses: DefaultClosedStatuses,
		StagnantAfter:  DefaultStagnantAfter,
	}
}

func (c *Classifier) IsClosed(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, closed := range c.ClosedStatuses {
		if s == closed {
			return true
		}
	}
	return false
}

// facts holds everything the rules look at, computed once per ticket.
type facts struct {
	validDates    bool
	closed        bool
	stagnant      bool
	overdueByTime bool
	gapHours      float64
	maxHours      float64
	thresholds    Thresholds
}

type rule struct {
	name   string
	match  func(f facts) bool
	result func(f facts) Info
}

// rules are evaluated in order; the first match decides. A stagnant ticket
// that is also past its warning mark is reported by its time band, so the
// stagnant level only appears for tickets that are not yet late by age.
var rules = []rule{
	{
		name:   "invalid-dates",
		match:  func(f facts) bool { return !f.validDates },
		result: func(facts) Info { return notOverdue },
	},
	{
		name:   "closed-status",
		match:  func(f facts) bool { return f.closed },
		result: func(facts) Info { return notOverdue },
	},
	{
		name:   "on-time",
		match:  func(f facts) bool { return !f.overdueByTime && !f.stagnant },
		result: func(facts) Info { return notOverdue },
	},
	{
		name:  "stagnant",
		match: func(f facts) bool { return f.stagnant && !f.overdueByTime },
		result: func(f facts) Info {
			return overdueInfo(LevelStagnant, f.gapHours)
		},
	},
	{
		name:  "time-band",
		match: func(f facts) bool { return f.overdueByTime },
		result: func(f facts) Info {
			level := LevelWarning
			switch {
			case f.maxHours >= f.thresholds.Severe:
				level = LevelSevere
			case f.maxHours >= f.thresholds.Critical:
				level = LevelCritical
			}
			return overdueInfo(level, f.maxHours)
		},
	},
}

func overdueInfo(level Level, hours float64) Info {
	return Info{
		IsOverdue:    true,
		Level:        level,
		HoursOverdue: hours,
		DaysOverdue:  wholeDays(hours),
	}
}

func (c *Classifier) Classify(t domain.Ticket, now time.Time) Info {
	info, _ := c.classify(t, now)
	return info
}

// classify also returns the name of the rule that fired.
func (c *Classifier) classify(t domain.Ticket, now time.Time) (Info, string) {
	f := c.facts(t, now)
	for _, r := range rules {
		if r.match(f) {
			return r.result(f), r.name
		}
	}
	return notOverdue, ""
}

func (c *Classifier) facts(t domain.Ticket, now time.Time) facts {
	if t.CreatedAt.IsZero() || t.LastUpdatedAt.IsZero() {
		return facts{}
	}
	f := facts{
		validDates: true,
		closed:     c.IsClosed(t.Status),
		thresholds: c.Thresholds.For(t.Severity),
	}
	stagnantAfter := c.StagnantAfter
	if stagnantAfter <= 0 {
		stagnantAfter = DefaultStagnantAfter
	}
	f.gapHours = wholeHours(t.LastUpdatedAt.Sub(t.CreatedAt))
	f.stagnant = f.gapHours > stagnantAfter
	f.maxHours = math.Max(wholeHours(now.Sub(t.CreatedAt)), wholeHours(now.Sub(t.LastUpdatedAt)))
	f.overdueByTime = f.maxHours >= f.thresholds.Warning
	return f
}

// wholeHours truncates to complete hours and clamps negatives to zero.
func wholeHours(d time.Duration) float64 {
	h := math.Trunc(d.Hours())
	if h < 0 {
		return 0
	}
	return h
}

func wholeDays(hours float64) float64 {
	return math.Floor(hours / 24)
}

// Evaluated pairs a ticket with its classification.
type Evaluated struct {
	domain.Ticket
	Overdue Info `json:"overdue"`
}

func (c *Classifier) Evaluate(tickets []domain.Ticket, now time.Time) []Evaluated {
	out := make([]Evaluated, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, Evaluated{Ticket: t, Overdue: c.Classify(t, now)})
	}
	return out
}

// FilterOverdue keeps the evaluated tickets whose classification is overdue, in input order.
func (c *Classifier) FilterOverdue(tickets []domain.Ticket, now time.Time) []Evaluated {
	var out []Evaluated
	for _, e := range c.Evaluate(tickets, now) {
		if e.Overdue.IsOverdue {
			out = append(out, e)
		}
	}
	return out
}

// SortByUrgency orders by level rank, then hours overdue, both descending.
// Ties keep their relative order.
func SortByUrgency(items []Evaluated) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Overdue.Level.Rank(), items[j].Overdue.Level.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Overdue.HoursOverdue > items[j].Overdue.HoursOverdue
	})
}
