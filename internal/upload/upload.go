// Package upload accepts a single project image from a multipart request and
// writes it to storage under a generated name.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/hijo-electricity/hijo/internal/sanitize"
	"github.com/hijo-electricity/hijo/internal/storage"
)

const (
	// FieldName is the only multipart field that may carry a file.
	FieldName = "image"
	// KeyPrefix is where project images are stored.
	KeyPrefix = "projects/"
	// DefaultMaxSize is the per-file ceiling when none is configured.
	DefaultMaxSize = 5 << 20

	// formOverhead is the allowance for non-file parts on top of the file
	// ceiling.
	formOverhead = 1 << 20
	memoryLimit  = 32 << 10
)

var allowedTypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

var (
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrTooManyFiles         = errors.New("too many files")
	ErrUnexpectedField      = errors.New("unexpected field")
	ErrMalformed            = errors.New("malformed multipart body")
)

// Error is a rejected upload. Message is safe to show to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func reject(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// File is an accepted, stored upload.
type File struct {
	Key          string
	Path         string
	OriginalName string
	ContentType  string
	Size         int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithObserver registers fn to be told the outcome of every upload attempt:
// "stored", "rejected" or "failed".
func WithObserver(fn func(result string)) Option {
	return func(h *Handler) { h.observe = fn }
}

// WithClock replaces the clock used for generated names.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler validates and stores uploads.
type Handler struct {
	provider storage.Provider
	maxSize  int64
	logger   *slog.Logger
	now      func() time.Time
	observe  func(string)
}

// New creates a Handler. A non-positive maxSize selects DefaultMaxSize.
func New(provider storage.Provider, maxSize int64, logger *slog.Logger, opts ...Option) *Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		provider: provider,
		maxSize:  maxSize,
		logger:   logger,
		now:      time.Now,
		observe:  func(string) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MaxSize returns the per-file ceiling in bytes.
func (h *Handler) MaxSize() int64 {
	return h.maxSize
}

// Receive parses r and stores its image, if any. Form values are sanitized
// as soon as they are parsed. A request without a file yields a nil File
// and no error; the caller decides whether the image was required.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) (*File, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, reject(ErrMalformed, "Upload error: "+ErrMalformed.Error(), err)
		}
		sanitize.Values(r.PostForm)
		sanitize.Values(r.Form)
		return nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+formOverhead)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		h.observe("rejected")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, reject(ErrFileTooLarge, "File too large", err)
		}
		return nil, reject(ErrMalformed, "Upload error: "+ErrMalformed.Error(), err)
	}
	form := r.MultipartForm
	// net/http only cleans up the form of the request it created, and r is
	// usually a middleware copy. The file is persisted before we return.
	defer form.RemoveAll()
	sanitize.Values(form.Value)
	sanitize.Values(r.PostForm)
	sanitize.Values(r.Form)

	fh, err := h.pick(form)
	if err != nil {
		h.observe("rejected")
		return nil, err
	}
	if fh == nil {
		return nil, nil
	}

	file, err := h.store(r.Context(), fh)
	if err != nil {
		h.observe("failed")
		return nil, err
	}
	h.observe("stored")
	return file, nil
}

// pick enforces the one-file-in-one-field rule and checks the file before
// any bytes are persisted.
func (h *Handler) pick(form *multipart.Form) (*multipart.FileHeader, error) {
	var picked *multipart.FileHeader
	count := 0
	for field, headers := range form.File {
		if field != FieldName {
			return nil, reject(ErrUnexpectedField, "Upload error: Unexpected field", nil)
		}
		count += len(headers)
		if len(headers) > 0 {
			picked = headers[0]
		}
	}
	if count > 1 {
		return nil, reject(ErrTooManyFiles, "Upload error: Too many files", nil)
	}
	if picked == nil {
		return nil, nil
	}

	if !allowed(picked) {
		return nil, reject(ErrUnsupportedMediaType,
			"Only image files are allowed (jpeg, jpg, png, gif, webp)", nil)
	}
	if picked.Size > h.maxSize {
		return nil, reject(ErrFileTooLarge, "File too large", nil)
	}
	return picked, nil
}

// allowed requires both the extension and the declared subtype to be in the
// allow-set.
func allowed(fh *multipart.FileHeader) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !allowedTypes[ext] {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	major, sub, ok := strings.Cut(mediaType, "/")
	return ok && major == "image" && allowedTypes[sub]
}

func (h *Handler) store(ctx context.Context, fh *multipart.FileHeader) (*File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	name := fmt.Sprintf("project-%d-%d%s", h.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)
	key := KeyPrefix + name
	contentType := fh.Header.Get("Content-Type")

	if err := h.provider.Put(ctx, key, src, fh.Size, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	h.logger.Debug("upload stored", "key", key, "size", fh.Size)
	return &File{
		Key:          key,
		Path:         storage.PublicPath(key),
		OriginalName: fh.Filename,
		ContentType:  contentType,
		Size:         fh.Size,
	}, nil
}

// Discard deletes a stored file after a later step failed. Errors are logged
// and otherwise ignored.
func (h *Handler) Discard(ctx context.Context, f *File) {
	if f == nil {
		return
	}
	h.Remove(ctx, f.Path)
}

// Remove deletes the object behind a public image path. Errors are logged
// and otherwise ignored.
func (h *Handler) Remove(ctx context.Context, publicPath string) {
	key, ok := storage.KeyFromPath(publicPath)
	if !ok {
		h.logger.Warn("image path outside uploads, not deleted", "path", publicPath)
		return
	}
	if err := h.provider.Delete(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Error("failed to delete upload", "key", key, "error", err)
	}
}

type fileKey struct{}

// WithFile stores f in ctx.
func WithFile(ctx context.Context, f *File) context.Context {
	return context.WithValue(ctx, fileKey{}, f)
}

// FromContext returns the file stored by WithFile, or nil.
func FromContext(ctx context.Context) *File {
	f, _ := ctx.Value(fileKey{}).(*File)
	return f
}
