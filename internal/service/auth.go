package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminNotFound      = errors.New("admin not found")
)

// AuthService authenticates admins against the store and issues tokens.
type AuthService struct {
	store  *store.Store
	tokens *TokenService
	// dummyHash is compared against when the username is unknown so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService creates an AuthService.
func NewAuthService(st *store.Store, tokens *TokenService) *AuthService {
	dummy, _ := HashPassword("hijo-unknown-user")
	return &AuthService{store: st, tokens: tokens, dummyHash: dummy}
}

// Tokens returns the underlying token service.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// Login checks the credentials and returns a signed token with the admin's
// public info.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.LoginResult, error) {
	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			CheckPassword(s.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(admin.ID)
	if err != nil {
		return nil, err
	}
	return &model.LoginResult{Token: token, Admin: admin.Info()}, nil
}

// Authenticate verifies token and resolves the admin it names. Token failures
// are ErrTokenExpired or ErrTokenInvalid; a vanished admin is
// ErrAdminNotFound; anything else is a store failure.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.AdminInfo, error) {
	adminID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	admin, err := s.store.GetAdmin(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	info := admin.Info()
	return &info, nil
}

// CreateAdmin hashes password and stores a new admin.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &model.Admin{Username: username, PasswordHash: hash}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ChangePassword re-hashes password and stores it for username.
func (s *AuthService) ChangePassword(ctx context.Context, username, password string) error {
	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.UpdateAdminPassword(ctx, admin.ID, hash)
}
