package sqlite

import (
	"database/sql"
	"time"

	"backlogwatch/internal/domain"
)

const upsertTicketSQL = `INSERT INTO tickets
	(backlog_id, ticket_id, title, status, severity, owner, region, company, city, source, created_at, last_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(backlog_id, ticket_id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		severity = excluded.severity,
		owner = excluded.owner,
		region = excluded.region,
		company = excluded.company,
		city = excluded.city,
		source = excluded.source,
		created_at = excluded.created_at,
		last_updated_at = excluded.last_updated_at`

// ReplaceTickets swaps the whole content of a backlog for the given tickets.
func ReplaceTickets(db *sql.DB, backlogID string, tickets []domain.Ticket) (int, error) {
	return writeTickets(db, backlogID, tickets, true)
}

// UpsertTickets inserts new tickets and updates existing ones by ticket ID.
func UpsertTickets(db *sql.DB, backlogID string, tickets []domain.Ticket) (int, error) {
	return writeTickets(db, backlogID, tickets, false)
}

func writeTickets(db *sql.DB, backlogID string, tickets []domain.Ticket, replace bool) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.Exec(`DELETE FROM tickets WHERE backlog_id = ?`, backlogID); err != nil {
			return 0, err
		}
	}

	stmt, err := tx.Prepare(upsertTicketSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, t := range tickets {
		_, err := stmt.Exec(
			backlogID, t.ID, t.Title, t.Status, t.Severity, t.Owner, t.Region, t.Company, t.City, t.Source,
			nullTime(t.CreatedAt), nullTime(t.LastUpdatedAt),
		)
		if err != nil {
			return written, err
		}
		written++
	}

	if _, err := tx.Exec(`UPDATE backlogs SET updated_at = ? WHERE id = ?`, time.Now().UTC(), backlogID); err != nil {
		return written, err
	}
	return written, tx.Commit()
}

func ListTickets(db *sql.DB, backlogID string) ([]domain.Ticket, error) {
	rows, err := db.Query(
		`SELECT backlog_id, ticket_id, title, status, severity, owner, region, company, city, source, created_at, last_updated_at
		 FROM tickets WHERE backlog_id = ? ORDER BY ticket_id`,
		backlogID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		var created, updated sql.NullTime
		if err := rows.Scan(
			&t.BacklogID, &t.ID, &t.Title, &t.Status, &t.Severity, &t.Owner, &t.Region,
			&t.Company, &t.City, &t.Source, &created, &updated,
		); err != nil {
			return nil, err
		}
		t.CreatedAt = timeOrZero(created)
		t.LastUpdatedAt = timeOrZero(updated)
		out = append(out, t)
	}
	return out, rows.Err()
}
