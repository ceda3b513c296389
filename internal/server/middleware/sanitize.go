package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/sanitize"
)

// DefaultBodyLimit caps JSON and urlencoded bodies.
const DefaultBodyLimit = 10 << 10

// Sanitize cleans the query string and JSON or urlencoded bodies before any
// route sees them. Multipart bodies are left to the upload step, which
// cleans their values as it parses them.
func Sanitize(tr *apierr.Translator, limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				q := r.URL.Query()
				sanitize.Values(q)
				r.URL.RawQuery = q.Encode()
			}

			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			switch mediaType {
			case "application/json":
				if err := cleanJSONBody(w, r, limit); err != nil {
					writeBodyError(w, r, tr, err)
					return
				}
			case "application/x-www-form-urlencoded":
				r.Body = http.MaxBytesReader(w, r.Body, limit)
				if err := r.ParseForm(); err != nil {
					writeBodyError(w, r, tr, err)
					return
				}
				sanitize.Values(r.PostForm)
				sanitize.Values(r.Form)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanJSONBody(w http.ResponseWriter, r *http.Request, limit int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	r.Body.Close()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return nil
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errInvalidJSON
	}
	cleaned, err := json.Marshal(sanitize.Any(doc))
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(cleaned))
	r.ContentLength = int64(len(cleaned))
	return nil
}

var errInvalidJSON = errors.New("invalid JSON body")

func writeBodyError(w http.ResponseWriter, r *http.Request, tr *apierr.Translator, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		tr.Write(w, r, apierr.Wrap(err, apierr.KindPayloadTooLarge, http.StatusRequestEntityTooLarge, "Request body too large"))
	case errors.Is(err, errInvalidJSON):
		tr.Write(w, r, apierr.Wrap(err, apierr.KindBadRequest, http.StatusBadRequest, "Invalid JSON body"))
	default:
		tr.Write(w, r, apierr.Wrap(err, apierr.KindBadRequest, http.StatusBadRequest, "Invalid request body"))
	}
}
