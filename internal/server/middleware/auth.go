package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/service"
)

type contextKeyAuth string

// AuthAdminKey is the context key for the authenticated admin.
const AuthAdminKey contextKeyAuth = "auth_admin"

// Authenticator resolves a bearer token to an admin.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AdminInfo, error)
}

// RequireAdmin returns an HTTP middleware that requires a valid
// "Authorization: Bearer <token>" header naming an existing admin. The
// admin's public info is attached to the request context.
func RequireAdmin(auth Authenticator, tr *apierr.Translator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				tr.Write(w, r, apierr.Unauthorized("No token provided. Authorization denied."))
				return
			}

			admin, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, service.ErrTokenExpired):
				tr.Write(w, r, apierr.Unauthorized("Token has expired. Please login again."))
				return
			case errors.Is(err, service.ErrTokenInvalid):
				tr.Write(w, r, apierr.Unauthorized("Invalid token."))
				return
			case errors.Is(err, service.ErrAdminNotFound):
				tr.Write(w, r, apierr.Unauthorized("Admin not found. Token invalid."))
				return
			default:
				logger.ErrorContext(r.Context(), "authorization failed", "error", err)
				tr.Write(w, r, apierr.Internal("Authorization failed.", err))
				return
			}

			ctx := context.WithValue(r.Context(), AuthAdminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// GetAdmin extracts the authenticated admin from the context. Returns nil
// for unauthenticated requests.
func GetAdmin(ctx context.Context) *model.AdminInfo {
	if a, ok := ctx.Value(AuthAdminKey).(*model.AdminInfo); ok {
		return a
	}
	return nil
}
