package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hijo-electricity/hijo/internal/apierr"
	"github.com/hijo-electricity/hijo/internal/storage"
)

// UploadsHandler serves stored images read-only from the storage provider.
type UploadsHandler struct {
	provider storage.Provider
	tr       *apierr.Translator
	logger   *slog.Logger
}

// NewUploadsHandler creates a new UploadsHandler.
func NewUploadsHandler(p storage.Provider, tr *apierr.Translator, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{provider: p, tr: tr, logger: logger}
}

// ServeHTTP streams the object named by the request path.
// GET /uploads/*
func (h *UploadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := storage.KeyFromPath(r.URL.Path)
	if !ok {
		h.tr.NotFound(w, r)
		return
	}

	obj, err := h.provider.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			h.tr.NotFound(w, r)
			return
		}
		h.tr.Write(w, r, err)
		return
	}
	defer obj.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", obj.ContentType)
	hdr.Set("Cache-Control", "public, max-age=86400")
	if obj.ContentLength >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if !obj.LastModified.IsZero() {
		hdr.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.DebugContext(r.Context(), "image stream interrupted", "key", key, "error", err)
	}
}
