package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/sanitize"
	"github.com/hijo-electricity/hijo/internal/validate"
)

type bodyKey[T any] struct{}

type idKey struct{}

// ValidateBody decodes the JSON or urlencoded body into a T, checks its
// rules and stores it in the context for Body. Every failed field is
// reported in one response.
func ValidateBody[T any](v *validate.Validator, tr *apierr.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var in T
			if err := decodeBody(r, &in); err != nil {
				tr.Write(w, r, apierr.BadRequest("Invalid request body"))
				return
			}
			if err := v.Struct(in); err != nil {
				tr.Write(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), bodyKey[T]{}, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}
		return validate.DecodeForm(r.PostForm, dst)
	}
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Body returns the value stored by ValidateBody[T].
func Body[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(bodyKey[T]{}).(T)
	return v, ok
}

// ParamID validates the {id} path parameter as a positive integer and
// stores it for GetID.
func ParamID(tr *apierr.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := validate.ParseID(sanitize.String(chi.URLParam(r, "id")))
			if err != nil {
				tr.Write(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), idKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetID returns the id stored by ParamID, or 0.
func GetID(ctx context.Context) int64 {
	id, _ := ctx.Value(idKey{}).(int64)
	return id
}
