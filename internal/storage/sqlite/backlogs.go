package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"backlogwatch/internal/domain"

	"github.com/google/uuid"
)

const backlogColumns = `b.id, b.name, b.description, b.source, b.created_by, b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM tickets t WHERE t.backlog_id = b.id)`

func scanBacklog(row interface{ Scan(...any) error }) (domain.Backlog, error) {
	var b domain.Backlog
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Source, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt, &b.TicketCount)
	return b, err
}

func CreateBacklog(db *sql.DB, b domain.Backlog) (domain.Backlog, error) {
	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := db.Exec(
		`INSERT INTO backlogs (id, name, description, source, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.Source, b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	)
	return b, conflictErr(err)
}

func GetBacklog(db *sql.DB, id string) (domain.Backlog, error) {
	b, err := scanBacklog(db.QueryRow(`SELECT `+backlogColumns+` FROM backlogs b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

func ListBacklogs(db *sql.DB) ([]domain.Backlog, error) {
	rows, err := db.Query(`SELECT ` + backlogColumns + ` FROM backlogs b ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Backlog
	for rows.Next() {
		b, err := scanBacklog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func UpdateBacklog(db *sql.DB, id, name, description, source string) error {
	res, err := db.Exec(
		`UPDATE backlogs SET name = ?, description = ?, source = ?, updated_at = ? WHERE id = ?`,
		name, description, source, time.Now().UTC(), id,
	)
	if err != nil {
		return conflictErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func DeleteBacklog(db *sql.DB, id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tickets WHERE backlog_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM alert_runs WHERE backlog_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM backlogs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
