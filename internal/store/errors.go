package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrNotHashed is returned when an admin password is not a bcrypt hash.
	ErrNotHashed = errors.New("password is not a bcrypt hash")
)
