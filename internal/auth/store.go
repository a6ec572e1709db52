package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"backlogwatch/internal/storage/sqlite"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists refresh tokens until they expire.
type TokenStore interface {
	Save(ctx context.Context, token, username string, expiresAt time.Time) error
	// Consume removes a live token and returns its owner. A token can be
	// consumed once.
	Consume(ctx context.Context, token string, now time.Time) (string, error)
	Delete(ctx context.Context, token string) error
}

type SQLiteTokenStore struct {
	DB *sql.DB
}

func (s SQLiteTokenStore) Save(_ context.Context, token, username string, expiresAt time.Time) error {
	return sqlite.SaveRefreshToken(s.DB, token, username, expiresAt)
}

func (s SQLiteTokenStore) Consume(_ context.Context, token string, now time.Time) (string, error) {
	username, err := sqlite.ConsumeRefreshToken(s.DB, token, now)
	if errors.Is(err, sqlite.ErrNotFound) {
		return "", ErrInvalidToken
	}
	return username, err
}

func (s SQLiteTokenStore) Delete(_ context.Context, token string) error {
	return sqlite.DeleteRefreshToken(s.DB, token)
}

// RedisTokenStore keeps refresh tokens as expiring keys, so several
// instances can share sessions.
type RedisTokenStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisTokenStore(addr string) *RedisTokenStore {
	return &RedisTokenStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Prefix: "backlogwatch:refresh:",
	}
}

func (s *RedisTokenStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.Prefix + hex.EncodeToString(sum[:])
}

func (s *RedisTokenStore) Save(ctx context.Context, token, username string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, s.key(token), username, ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string, _ time.Time) (string, error) {
	username, err := s.Client.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	return username, err
}

func (s *RedisTokenStore) Delete(ctx context.Context, token string) error {
	return s.Client.Del(ctx, s.key(token)).Err()
}

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}
