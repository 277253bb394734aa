package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

type contextKey string

const (
	userIDKey   contextKey = "auth.userID"
	usernameKey contextKey = "auth.username"
	roleKey     contextKey = "auth.role"
)

// UserIDFromContext returns the authenticated user's id, or 0 when the
// request is unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// UsernameFromContext returns the authenticated username, or "".
func UsernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(usernameKey).(string)
	return name
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// Middleware rejects requests without a valid bearer token and stores the
// token claims on the request context.
func Middleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing authorization header")
				return
			}
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authorization header must use the Bearer scheme")
				return
			}
			claims, err := issuer.Verify(tokenString)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, usernameKey, claims.Username)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only the listed roles through. Admin always passes.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles)+1)
	allowed[RoleAdmin] = struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
