package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/service"
	"github.com/hijo-electricity/hijo/internal/store"
	"github.com/hijo-electricity/hijo/internal/upload"
	"github.com/hijo-electricity/hijo/internal/validate"
)

// classifier maps err to an Error, or reports false to pass it on.
type classifier func(err error) (*Error, bool)

// Translator converts errors into response envelopes. Classifiers run in
// order and the first match wins; unmatched errors fall back to the status
// declared by an *Error, or 500.
type Translator struct {
	dev         bool
	logger      *slog.Logger
	classifiers []classifier
}

// NewTranslator creates a Translator. maxUpload is the upload size ceiling in
// bytes, quoted in the file-too-large message.
func NewTranslator(dev bool, maxUpload int64, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Translator{dev: dev, logger: logger}
	t.classifiers = []classifier{
		uploadSize(maxUpload),
		uploadOther,
		validation,
		duplicate,
		token,
	}
	return t
}

func uploadSize(maxUpload int64) classifier {
	mb := maxUpload / (1 << 20)
	if mb < 1 {
		mb = 1
	}
	return func(err error) (*Error, bool) {
		if !errors.Is(err, upload.ErrFileTooLarge) {
			return nil, false
		}
		return Wrap(err, KindFileTooLarge, http.StatusBadRequest,
			fmt.Sprintf("File size too large. Maximum is %dMB", mb)), true
	}
}

func uploadOther(err error) (*Error, bool) {
	var ue *upload.Error
	if !errors.As(err, &ue) {
		return nil, false
	}
	kind := KindBadRequest
	if errors.Is(ue, upload.ErrUnsupportedMediaType) {
		kind = KindUnsupportedMediaType
	}
	return Wrap(err, kind, http.StatusBadRequest, ue.Message), true
}

func validation(err error) (*Error, bool) {
	var ve *validate.Errors
	if !errors.As(err, &ve) {
		return nil, false
	}
	return Validation(ve.Fields), true
}

func duplicate(err error) (*Error, bool) {
	if !errors.Is(err, store.ErrDuplicate) {
		return nil, false
	}
	return Wrap(err, KindConflict, http.StatusConflict, "Duplicate entry"), true
}

func token(err error) (*Error, bool) {
	if !errors.Is(err, service.ErrTokenExpired) && !errors.Is(err, service.ErrTokenInvalid) {
		return nil, false
	}
	return Wrap(err, KindUnauthorized, http.StatusUnauthorized, "Invalid or expired token"), true
}

// Translate classifies err. The result is never nil for a non-nil err.
func (t *Translator) Translate(err error) *Error {
	for _, c := range t.classifiers {
		if e, ok := c(err); ok {
			return e
		}
	}
	var declared *Error
	if errors.As(err, &declared) && declared.Status != 0 {
		return declared
	}
	return Internal("Internal server error", err)
}

// Envelope renders e as a response body, adding the cause in development.
func (t *Translator) Envelope(e *Error) model.Response {
	resp := model.Response{Success: false, Message: e.Message, Errors: e.Fields}
	if t.dev && e.Err != nil {
		resp.Error = e.Err.Error()
	}
	return resp
}

// Write translates err and writes the envelope. Server errors are logged.
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	e := t.Translate(err)
	if e.Status >= http.StatusInternalServerError {
		t.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", e.Status,
			"error", err,
		)
	}
	WriteJSON(w, e.Status, t.Envelope(e))
}

// NotFound answers unknown routes and methods.
func (t *Translator) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, model.Response{Success: false, Message: "Route not found"})
}

// WriteJSON serializes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, model.Response{Success: true, Message: message, Data: data})
}

// WriteMessage writes a failure envelope with no cause.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, model.Response{Success: false, Message: message})
}
