package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

// UserIDHeader carries the user id verified by the gateway
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// WithUserID stores the authenticated user id in the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request did not pass RequireUser
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// RequireUser rejects requests without a valid X-User-ID header
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		parsed, err := uuid.Parse(userID)
		if userID == "" || err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "authentication required",
				"code":  "UNAUTHORIZED",
			})
			return
		}
		ctx := WithUserID(r.Context(), parsed.String())
		logger := observability.GetLogger().With().Str("user_id", parsed.String()).Logger()
		next.ServeHTTP(w, r.WithContext(observability.ContextWithLogger(ctx, logger)))
	})
}
