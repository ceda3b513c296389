package middleware

import (
	"net/http"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/upload"
)

// Upload parses a multipart request, stores its image and puts the result in
// the context for upload.FromContext. Requests without a file pass through
// with no file attached.
func Upload(h *upload.Handler, tr *apierr.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f, err := h.Receive(w, r)
			if err != nil {
				tr.Write(w, r, err)
				return
			}
			if f != nil {
				r = r.WithContext(upload.WithFile(r.Context(), f))
			}
			next.ServeHTTP(w, r)
		})
	}
}
