package middleware

import (
	"context"
	"net/http"
)

// UserIDHeader identifies the requesting user. Export concurrency
// limits are enforced per user.
const UserIDHeader = "X-User-ID"

// anonymousUser is used when the client sends no user header.
const anonymousUser = "anonymous"

// UserID extracts the user identity from the X-User-ID header into the
// request context, defaulting to a shared anonymous identity.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			userID = anonymousUser
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the context.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return anonymousUser
}
