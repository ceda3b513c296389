package model

import "time"

// Admin is the single privileged account role. Passwords are stored as bcrypt
// hashes and the hash is never serialized.
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// AdminInfo is the public view of an admin attached to authenticated requests.
type AdminInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Info returns the public view of a.
func (a *Admin) Info() AdminInfo {
	return AdminInfo{ID: a.ID, Username: a.Username}
}
