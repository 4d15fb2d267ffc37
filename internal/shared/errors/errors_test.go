package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesAppError(t *testing.T) {
	inner := NotFound("state", "abc")
	wrapped := Wrap(inner, "load state")

	if wrapped.HTTPStatus != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, wrapped.HTTPStatus)
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("Wrapped error should still match ErrNotFound")
	}
}

func TestWrapMapsDeadlineToUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bare deadline", context.DeadlineExceeded},
		{"wrapped deadline", fmt.Errorf("acquire connection: %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, "query states")

			if wrapped.HTTPStatus != http.StatusServiceUnavailable {
				t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, wrapped.HTTPStatus)
			}
			if wrapped.Code != "UNAVAILABLE" {
				t.Errorf("Expected code UNAVAILABLE, got %s", wrapped.Code)
			}
			if !Is(wrapped, ErrUnavailable) {
				t.Error("Wrapped error should match ErrUnavailable")
			}
			if !Is(wrapped, context.DeadlineExceeded) {
				t.Error("Original cause should stay reachable through the chain")
			}
		})
	}
}

func TestWrapDefaultsToInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("connection refused"), "query states")

	if wrapped.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, wrapped.HTTPStatus)
	}
	if Is(wrapped, ErrUnavailable) {
		t.Error("Non-timeout failure should not read as unavailable")
	}
}
