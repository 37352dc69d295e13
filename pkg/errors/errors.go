// Package errors names the ways a ranking request can fail and maps each
// to an HTTP status. Pipeline code wraps the sentinels with fmt.Errorf;
// request validation returns *Error so the client sees a precise message.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyDocument       = errors.New("document has no words")
	ErrMissingProfileEntry = errors.New("term missing from document profile")
	ErrEmptyCorpus         = errors.New("corpus has no documents")
	ErrDuplicateDocument   = errors.New("duplicate document id")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCorpusUnavailable   = errors.New("corpus unavailable")
	ErrCacheDisabled       = errors.New("result cache is disabled")
)

// statusClientClosedRequest is logged when the caller went away before the
// ranking finished. No client ever receives it.
const statusClientClosedRequest = 499

// Error is a failure whose Message is safe to return to API clients. It
// matches its Kind with errors.Is. A zero Status is derived from Kind.
type Error struct {
	Kind    error
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, status int, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: status}
}

// Invalidf reports a rejected request parameter or setting.
func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

// HTTPStatusCode maps err to a status. An *Error with a Status wins;
// otherwise the first matching kind decides. Deadline expiry is checked
// before the corpus kinds because a timed-out load wraps both.
func HTTPStatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyCorpus), errors.Is(err, ErrEmptyDocument), errors.Is(err, ErrDuplicateDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCorpusUnavailable), errors.Is(err, ErrCacheDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text to send a client for err. Server-side
// failures are replaced by fallback so internals do not leak.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if HTTPStatusCode(err) >= http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}
