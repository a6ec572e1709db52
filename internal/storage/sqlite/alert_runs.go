package sqlite

import (
	"database/sql"
	"time"

	"backlogwatch/internal/domain"

	"github.com/google/uuid"
)

func InsertAlertRun(db *sql.DB, run domain.AlertRun) (domain.AlertRun, error) {
	run.ID = uuid.NewString()
	if run.RanAt.IsZero() {
		run.RanAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO alert_runs (id, backlog_id, triggered_by, success, message, overdue_count, ran_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BacklogID, run.TriggeredBy, run.Success, run.Message, run.OverdueCount, run.RanAt.UTC(),
	)
	return run, err
}

// ListAlertRuns returns the most recent runs first.
func ListAlertRuns(db *sql.DB, backlogID string, limit int) ([]domain.AlertRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT id, backlog_id, triggered_by, success, message, overdue_count, ran_at
		 FROM alert_runs WHERE backlog_id = ?
		 ORDER BY ran_at DESC, rowid DESC
		 LIMIT ?`,
		backlogID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AlertRun
	for rows.Next() {
		var r domain.AlertRun
		if err := rows.Scan(&r.ID, &r.BacklogID, &r.TriggeredBy, &r.Success, &r.Message, &r.OverdueCount, &r.RanAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
