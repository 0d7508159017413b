package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"skyline-data/tycho/pkg/web/types"
)

// Timeout enforces a per-request deadline with context.WithTimeout.
// When the deadline passes before the handler finishes, the client gets
// a 504 and the handler's context is cancelled. This bounds interactive
// API calls only; export tasks run in the background under their own
// timeout.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					slog.ErrorContext(r.Context(), "request timeout",
						"request_id", GetRequestID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout.String(),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_ = json.NewEncoder(w).Encode(
						types.NewGatewayTimeoutError("request took too long to complete"))
				}
			}
		})
	}
}
