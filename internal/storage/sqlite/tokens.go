package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// Refresh tokens are stored hashed; the raw value only ever lives with the client.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func SaveRefreshToken(db *sql.DB, token, username string, expiresAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO refresh_tokens (token_hash, username, expires_at) VALUES (?, ?, ?)`,
		hashToken(token), username, expiresAt.UTC(),
	)
	return err
}

// LookupRefreshToken returns the owner of a token that has not expired at now.
func LookupRefreshToken(db *sql.DB, token string, now time.Time) (string, error) {
	var username string
	var expiresAt time.Time
	err := db.QueryRow(
		`SELECT username, expires_at FROM refresh_tokens WHERE token_hash = ?`,
		hashToken(token),
	).Scan(&username, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !now.Before(expiresAt) {
		return "", ErrNotFound
	}
	return username, nil
}

// ConsumeRefreshToken deletes a live token and returns its owner. Of two
// concurrent calls with the same token only the one whose DELETE removes
// the row succeeds.
func ConsumeRefreshToken(db *sql.DB, token string, now time.Time) (string, error) {
	username, err := LookupRefreshToken(db, token, now)
	if err != nil {
		return "", err
	}
	res, err := db.Exec(`DELETE FROM refresh_tokens WHERE token_hash = ?`, hashToken(token))
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrNotFound
	}
	return username, nil
}

func DeleteRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM refresh_tokens WHERE token_hash = ?`, hashToken(token))
	return err
}

func PurgeExpiredRefreshTokens(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
