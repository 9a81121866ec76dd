// Package apperror is the error taxonomy shared by the service and its
// transports: validation failures, missing users, and storage failures.
package apperror

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies an error for callers and transports.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage_error"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
)

// Error carries the failing operation, its kind, a client-safe message and
// optional per-field details. Err is the underlying cause, if any.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrValidation) and friends match by kind.
func (e *Error) Is(target error) bool {
	return sentinel(e.Kind) == target
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindStorage:
		return ErrStorage
	}
	return nil
}

// Validation builds a validation error.
func Validation(op, message string, details ...string) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: message, Details: details}
}

// NotFound builds a not-found error.
func NotFound(op, message string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Message: message}
}

// Storage wraps a store or rebuild failure.
func Storage(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStorage, Message: "storage unavailable", Err: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors outside the taxonomy are storage errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindStorage
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
