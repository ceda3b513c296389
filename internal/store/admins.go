package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hijo-electricity/hijo/internal/model"
)

const adminColumns = "id, username, password_hash, created_at, updated_at"

// CreateAdmin inserts a new admin. PasswordHash must already hold a bcrypt
// hash; plaintext is rejected with ErrNotHashed.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	if _, err := bcrypt.Cost([]byte(admin.PasswordHash)); err != nil {
		return ErrNotHashed
	}
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	id, err := s.insert(ctx,
		"INSERT INTO admins (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)",
		admin.Username, admin.PasswordHash, admin.CreatedAt, admin.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	return s.getAdmin(ctx, "SELECT "+adminColumns+" FROM admins WHERE id = ?", id)
}

// GetAdminByUsername returns an admin by its unique username.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return s.getAdmin(ctx, "SELECT "+adminColumns+" FROM admins WHERE username = ?", username)
}

func (s *Store) getAdmin(ctx context.Context, query string, arg interface{}) (*model.Admin, error) {
	var admin model.Admin
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &admin, s.db.Rebind(query), arg)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by username.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	admins := []model.Admin{}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		admins = admins[:0]
		return s.db.SelectContext(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY username")
	})
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins")
	})
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminPassword replaces the stored hash. hash must be a bcrypt hash.
func (s *Store) UpdateAdminPassword(ctx context.Context, id int64, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ErrNotHashed
	}
	err := s.execAffecting(ctx,
		"UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().UTC(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update admin password: %w", err)
	}
	return err
}
