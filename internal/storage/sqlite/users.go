package sqlite

import (
	"database/sql"
	"errors"

	"backlogwatch/internal/domain"
)

func CreateUser(db *sql.DB, u domain.User) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO users (username, email, role, password_hash) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.Role, u.PasswordHash,
	)
	if err != nil {
		return 0, conflictErr(err)
	}
	return res.LastInsertId()
}

func GetUserByUsername(db *sql.DB, username string) (domain.User, error) {
	var u domain.User
	err := db.QueryRow(
		`SELECT id, username, email, role, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func ListUsers(db *sql.DB) ([]domain.User, error) {
	rows, err := db.Query(`SELECT id, username, email, role, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func DeleteUser(db *sql.DB, username string) error {
	res, err := db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = db.Exec(`DELETE FROM refresh_tokens WHERE username = ?`, username)
	return err
}

func CountUsersByRole(db *sql.DB, role string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&count)
	return count, err
}
