package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserKey   contextKey = "user"
	APIKeyKey contextKey = "api_key"
)

// publicPaths skip auth and rate limiting
var publicPaths = map[string]bool{
	"/health":  true,
	"/livez":   true,
	"/readyz":  true,
	"/metrics": true,
}

// IsPublic reports whether path is served without an API key.
func IsPublic(path string) bool { return publicPaths[path] }

// APIKeyAuth validates the API key from the Authorization header. validKeys maps
// a super user id to its key.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format")
				return
			}

			// constant-time comparison against every key
			var user string
			for u, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					user = u
				}
			}
			if user == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}
			if err := ValidateUserID(user); err != nil {
				WriteError(w, http.StatusForbidden, "forbidden", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext extracts the authenticated super user id
func GetUserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}
