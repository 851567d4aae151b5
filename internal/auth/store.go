package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// User is an admin login.
type User struct {
	ID           string
	Email        string
	PasswordHash string
}

// UserStore reads and writes admin_users.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByEmail returns ErrUserNotFound when no admin has the email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, email, password_hash
		FROM admin_users
		WHERE email = $1
	`, normalizeEmail(email)).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: find admin user: %w", err)
	}
	return &u, nil
}

// Upsert creates the admin or replaces its password hash.
func (s *UserStore) Upsert(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_users (email, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id::text
	`, normalizeEmail(email), passwordHash).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("auth: upsert admin user: %w", err)
	}
	return id, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
