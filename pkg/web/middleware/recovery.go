package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"skyline-data/tycho/pkg/web/types"
)

// Recovery recovers from panics in handlers and returns a 500 in the
// standard error envelope. The panic and stack trace are logged; no
// internal detail reaches the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(
					types.NewServerError("An internal error occurred. Please try again later."))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
