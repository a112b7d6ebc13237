package errors

import (
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
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped app error", fmt.Errorf("ctx: %w", Invalid("bad %s", "fragment")), http.StatusBadRequest},
		{"not found", ErrGenomeNotFound, http.StatusNotFound},
		{"exists", fmt.Errorf("insert: %w", ErrGenomeExists), http.StatusConflict},
		{"idempotency", ErrIdempotencyConflict, http.StatusConflict},
		{"invalid sequence", ErrInvalidSequence, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"shard", ErrShardUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrGenomeExists, http.StatusConflict, "genome %q", "oryx"))
	if !errors.Is(err, ErrGenomeExists) {
		t.Error("errors.Is did not reach the sentinel")
	}
	if got := Message(err, "fallback"); got != `genome "oryx"` {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("Message(plain) = %q", got)
	}
}
