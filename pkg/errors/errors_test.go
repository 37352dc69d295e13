package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{"invalidf", Invalidf("limit %q", "x"), http.StatusBadRequest},
		{"empty corpus", ErrEmptyCorpus, http.StatusUnprocessableEntity},
		{"empty document", fmt.Errorf("profiling document %q: %w", "a", ErrEmptyDocument), http.StatusUnprocessableEntity},
		{"duplicate document", fmt.Errorf("%w: %q", ErrDuplicateDocument, "a"), http.StatusUnprocessableEntity},
		{"missing profile entry", ErrMissingProfileEntry, http.StatusInternalServerError},
		{"corpus unavailable", fmt.Errorf("%w: dial tcp", ErrCorpusUnavailable), http.StatusServiceUnavailable},
		{"cache disabled", ErrCacheDisabled, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"timed-out corpus load", fmt.Errorf("%w: %w", ErrCorpusUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, statusClientClosedRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"explicit status wins", New(ErrEmptyCorpus, http.StatusTeapot, "custom"), http.StatusTeapot},
		{"zero status falls back to kind", &Error{Kind: ErrEmptyCorpus, Message: "x"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("parsing request: %w", Invalidf("limit %d out of range", -1))
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(wrapped *Error, ErrInvalidInput) = false")
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As(*Error) = false")
	}
	if got, want := appErr.Error(), "invalid input: limit -1 out of range"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"app error message", fmt.Errorf("wrap: %w", Invalidf("limit must be positive")), "limit must be positive"},
		{"client error text", fmt.Errorf("%w: %q", ErrDuplicateDocument, "a.txt"), `duplicate document id: "a.txt"`},
		{"server error hidden", errors.New("pq: password authentication failed"), "search failed"},
		{"unavailable hidden", fmt.Errorf("%w: dial tcp 10.0.0.1", ErrCorpusUnavailable), "search failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PublicMessage(tt.err, "search failed"); got != tt.want {
				t.Errorf("PublicMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
