package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

type contextKey string

const (
	// UserIDHeader carries the authenticated caller. Authentication itself
	// happens upstream.
	UserIDHeader = "X-User-ID"
	// UserLevelHeader carries the caller's verification level.
	UserLevelHeader = "X-User-Level"

	userIDKey    = contextKey("user_id")
	userLevelKey = contextKey("user_level")
)

// UserIDFromContext returns the caller id set by Identity.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// UserLevelFromContext returns the caller's verification level, unverified
// when none was supplied.
func UserLevelFromContext(ctx context.Context) domain.VerificationLevel {
	l, ok := ctx.Value(userLevelKey).(domain.VerificationLevel)
	if !ok || l == "" {
		return domain.LevelUnverified
	}
	return l
}

// Identity requires X-User-ID and validates X-User-Level.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}

		level := domain.LevelUnverified
		if raw := strings.ToLower(strings.TrimSpace(r.Header.Get(UserLevelHeader))); raw != "" {
			if !domain.ValidVerificationLevel(raw) {
				writeError(w, http.StatusBadRequest, "invalid "+UserLevelHeader+" header")
				return
			}
			level = domain.VerificationLevel(raw)
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, userLevelKey, level)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
