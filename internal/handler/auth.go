package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/server/middleware"
	"github.com/hijo-electricity/hijo/internal/service"
)

// LoginService checks admin credentials.
type LoginService interface {
	Login(ctx context.Context, username, password string) (*model.LoginResult, error)
}

// AuthHandler serves the admin session endpoints.
type AuthHandler struct {
	auth LoginService
	tr   *apierr.Translator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth LoginService, tr *apierr.Translator) *AuthHandler {
	return &AuthHandler{auth: auth, tr: tr}
}

// Login exchanges credentials for a signed token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	in, ok := middleware.Body[model.LoginInput](r.Context())
	if !ok {
		h.tr.Write(w, r, apierr.BadRequest("Invalid request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierr.WriteMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.tr.Write(w, r, err)
		return
	}
	apierr.WriteSuccess(w, http.StatusOK, "Login successful", result)
}

// Verify echoes the admin resolved by the auth middleware.
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	apierr.WriteSuccess(w, http.StatusOK, "Token is valid", map[string]interface{}{
		"admin": middleware.GetAdmin(r.Context()),
	})
}
