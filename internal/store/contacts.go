package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hijo-electricity/hijo/internal/model"
)

const contactColumns = "id, name, email, phone, message, created_at"

// CreateContact inserts c and fills in its ID and CreatedAt.
func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	c.CreatedAt = time.Now().UTC()
	id, err := s.insert(ctx,
		"INSERT INTO contacts (name, email, phone, message, created_at) VALUES (?, ?, ?, ?, ?)",
		c.Name, c.Email, c.Phone, c.Message, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	c.ID = id
	return nil
}

// GetContact returns a contact by ID.
func (s *Store) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &c, s.db.Rebind("SELECT "+contactColumns+" FROM contacts WHERE id = ?"), id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ListContacts returns all contacts, newest first.
func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	contacts := []model.Contact{}
	err := s.withRetry(ctx, func(ctx context.Context) error {
		contacts = contacts[:0]
		return s.db.SelectContext(ctx, &contacts,
			"SELECT "+contactColumns+" FROM contacts ORDER BY created_at DESC, id DESC")
	})
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// DeleteContact removes a contact by ID.
func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	err := s.execAffecting(ctx, "DELETE FROM contacts WHERE id = ?", id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete contact: %w", err)
	}
	return err
}
