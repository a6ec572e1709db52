// Package scheduler runs the periodic overdue sweep.
package scheduler

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 8 * * 1-5".
func ParseSchedule(expr string) (cron.Schedule, error) {
	return parser.Parse(strings.TrimSpace(expr))
}

// Start launches the sweep loop in a goroutine and returns immediately. It
// returns false when the schedule is empty or invalid. The loop ends when
// ctx is cancelled.
func Start(ctx context.Context, expr string, loc *time.Location, runner *Runner) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		log.Println("Overdue sweep disabled (alert_schedule not set)")
		return false
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		log.Printf("Invalid alert_schedule '%s': %v; overdue sweep disabled", expr, err)
		return false
	}
	if loc == nil {
		loc = time.Local
	}
	log.Printf("Overdue sweep scheduled (cron: %s)", expr)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next overdue sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Overdue sweep stopped")
				return
			case <-timer.C:
			}

			result, err := runner.RunAll(ctx)
			if err != nil {
				log.Printf("Overdue sweep error: %v", err)
			}
			log.Printf("Overdue sweep complete: %s", FormatSweepSummary(result))
		}
	}()
	return true
}
