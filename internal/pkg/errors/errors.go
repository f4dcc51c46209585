package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Errors  []string    `json:"errors"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Error kinds. Domain code wraps one of these so handlers can pick the
// response status with errors.Is.
var (
	ErrInvalidInput = stderrors.New("invalid input")
	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
	ErrNotFound     = stderrors.New("not found")
	ErrConflict     = stderrors.New("conflict")
)

// Error carries a client-facing message together with its kind.
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

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Invalid(message string) error      { return New(ErrInvalidInput, message) }
func Unauthorized(message string) error { return New(ErrUnauthorized, message) }
func NotFound(message string) error     { return New(ErrNotFound, message) }
func Forbidden(message string) error    { return New(ErrForbidden, message) }

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Errors:  []string{message},
		Details: details,
	})
}

// Respond translates err into the JSON error envelope. Errors without a
// known kind are logged and reported as a generic internal error.
func Respond(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := "Internal server error"

	var appErr *Error
	if status != http.StatusInternalServerError {
		message = err.Error()
		if stderrors.As(err, &appErr) {
			message = appErr.Message
		}
	} else {
		log.Error().Err(err).Msg("request failed")
	}

	WriteError(w, status, code, message, nil)
}

func classify(err error) (int, string) {
	switch {
	case stderrors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeInvalidInput
	case stderrors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
