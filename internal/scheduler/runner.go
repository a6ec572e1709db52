package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/export"
	"backlogwatch/internal/notify"
	"backlogwatch/internal/storage/sqlite"
)

const TriggeredBySchedule = "scheduler"

// Runner executes overdue alerts for stored backlogs and records each run.
type Runner struct {
	DB       *sql.DB
	Notifier *notify.Notifier
	Location *time.Location
	Now      func() time.Time
}

func (r *Runner) now() time.Time {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if r.Location != nil {
		now = now.In(r.Location)
	}
	return now
}

// Run alerts on one backlog and always records the outcome.
func (r *Runner) Run(ctx context.Context, b domain.Backlog, triggeredBy string) (domain.AlertRun, error) {
	res, err := r.notify(ctx, b)
	if err != nil {
		return domain.AlertRun{}, err
	}
	return r.record(b, triggeredBy, res)
}

func (r *Runner) notify(ctx context.Context, b domain.Backlog) (notify.Result, error) {
	tickets, err := sqlite.ListTickets(r.DB, b.ID)
	if err != nil {
		return notify.Result{}, fmt.Errorf("load tickets for %s: %w", b.ID, err)
	}
	fileName := export.AlertFileName(b.Name, r.now())
	res := r.Notifier.Notify(ctx, tickets, fileName)
	log.Printf("alert backlog=%s success=%t overdue=%d message=%q", b.ID, res.Success, res.OverdueCount, res.Message)
	return res, nil
}

func (r *Runner) record(b domain.Backlog, triggeredBy string, res notify.Result) (domain.AlertRun, error) {
	run, err := sqlite.InsertAlertRun(r.DB, domain.AlertRun{
		BacklogID:    b.ID,
		TriggeredBy:  triggeredBy,
		Success:      res.Success,
		Message:      res.Message,
		OverdueCount: res.OverdueCount,
		RanAt:        r.now(),
	})
	if err != nil {
		return run, fmt.Errorf("record alert run: %w", err)
	}
	return run, nil
}

type SweepResult struct {
	Backlogs int
	Alerted  int
	Quiet    int
	Failed   int
	Errors   []string
}

// RunAll sweeps every backlog. Runs that stayed below the alert threshold
// are not recorded, so the history only shows attempted sends.
func (r *Runner) RunAll(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	backlogs, err := sqlite.ListBacklogs(r.DB)
	if err != nil {
		return result, fmt.Errorf("list backlogs: %w", err)
	}
	result.Backlogs = len(backlogs)
	for _, b := range backlogs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := r.notify(ctx, b)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", b.Name, err))
			continue
		}
		if res.Success && res.OverdueCount < r.Notifier.Threshold() {
			result.Quiet++
			continue
		}
		if _, err := r.record(b, TriggeredBySchedule, res); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", b.Name, err))
		}
		if res.Success {
			result.Alerted++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", b.Name, res.Message))
		}
	}
	return result, nil
}

func FormatSweepSummary(result SweepResult) string {
	if result.Backlogs == 0 {
		return "No backlogs to check."
	}
	var parts []string
	if result.Alerted > 0 {
		parts = append(parts, fmt.Sprintf("%d alerted", result.Alerted))
	}
	if result.Quiet > 0 {
		parts = append(parts, fmt.Sprintf("%d below threshold", result.Quiet))
	}
	if result.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", result.Failed))
	}
	msg := fmt.Sprintf("Checked %d backlog(s)", result.Backlogs)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, ", ")
	}
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nErrors:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}
