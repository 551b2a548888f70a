package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	OperatorIDKey contextKey = "operator_id"
	RolesKey      contextKey = "roles"
)

// RequireRole guards an HTTP handler with a bearer token carrying role.
func RequireRole(tokens *Tokens, role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Expect the standard "Bearer <token>" header
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			http.Error(w, "authorization token is missing", http.StatusUnauthorized)
			return
		}

		// 2. Validate the JWT
		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		if !claims.HasRole(role) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		// 3. Inject identity for downstream handlers
		ctx := context.WithValue(r.Context(), OperatorIDKey, claims.OperatorID)
		ctx = context.WithValue(ctx, RolesKey, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
