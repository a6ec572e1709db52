package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/storage/sqlite"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnknownRole        = errors.New("unknown role")
	ErrUserExists         = errors.New("username already taken")
)

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Username     string `json:"username"`
	Role         string `json:"role"`
}

type Service struct {
	DB         *sql.DB
	Issuer     *Issuer
	Tokens     TokenStore
	RefreshTTL time.Duration
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := sqlite.GetUserByUsername(s.DB, strings.TrimSpace(username))
	if errors.Is(err, sqlite.ErrNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issue(ctx, user.Username, user.Role)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	username, err := s.Tokens.Consume(ctx, refreshToken, s.now())
	if err != nil {
		return TokenPair{}, err
	}
	user, err := sqlite.GetUserByUsername(s.DB, username)
	if errors.Is(err, sqlite.ErrNotFound) {
		return TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	return s.issue(ctx, user.Username, user.Role)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.Tokens.Delete(ctx, refreshToken)
}

func (s *Service) issue(ctx context.Context, username, role string) (TokenPair, error) {
	access, expiresAt, err := s.Issuer.IssueAccessToken(username, role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := NewRefreshToken()
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.Tokens.Save(ctx, refresh, username, s.now().Add(s.RefreshTTL)); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.Unix(),
		Username:     username,
		Role:         role,
	}, nil
}

func (s *Service) CreateUser(username, email, password, role string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if role == "" {
		role = RoleUser
	}
	if !IsKnownRole(role) {
		return domain.User{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if _, err := sqlite.GetUserByUsername(s.DB, username); err == nil {
		return domain.User{}, ErrUserExists
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{Username: username, Email: strings.TrimSpace(email), Role: role, PasswordHash: hash}
	id, err := sqlite.CreateUser(s.DB, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	u.CreatedAt = s.now().UTC()
	u.PasswordHash = ""
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account when no admin exists yet.
func (s *Service) EnsureAdmin(username, password, email string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	count, err := sqlite.CountUsersByRole(s.DB, RoleAdmin)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(username, email, password, RoleAdmin); err != nil {
		return false, err
	}
	log.Printf("auth bootstrap admin created username=%s", username)
	return true, nil
}
