// Package apierr carries HTTP-aware errors and translates arbitrary errors
// into the JSON response envelope.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/hijo-electricity/hijo/internal/model"
)

// Kind classifies an Error independently of its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
	KindPayloadTooLarge
	KindFileTooLarge
	KindUnsupportedMediaType
)

var kindNames = map[Kind]string{
	KindInternal:             "internal",
	KindBadRequest:           "bad_request",
	KindUnauthorized:         "unauthorized",
	KindNotFound:             "not_found",
	KindConflict:             "conflict",
	KindPayloadTooLarge:      "payload_too_large",
	KindFileTooLarge:         "file_too_large",
	KindUnsupportedMediaType: "unsupported_media_type",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is an error with a client-facing message and status. Err holds the
// underlying cause, which is only exposed to clients in development mode.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []model.FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error with no cause.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap returns an Error carrying err as its cause.
func Wrap(err error, kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, http.StatusUnauthorized, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message)
}

// Internal wraps err as a 500 with a client-facing message.
func Internal(message string, err error) *Error {
	return Wrap(err, KindInternal, http.StatusInternalServerError, message)
}

// Validation returns a 400 carrying every failed field.
func Validation(fields []model.FieldError) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Fields:  fields,
	}
}
