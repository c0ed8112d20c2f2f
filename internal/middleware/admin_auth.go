package middleware

import (
	"context"
	"net/http"
)

// TokenValidator checks an admin bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

const ctxAdminKey contextKey = "admin"

// RequireAdmin guards administrative routes with an admin session token.
func RequireAdmin(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "admin token required")
				return
			}
			subject, err := v.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxAdminKey, subject)))
		})
	}
}

// AdminFromCtx returns the authenticated admin subject or "".
func AdminFromCtx(ctx context.Context) string {
	s, _ := ctx.Value(ctxAdminKey).(string)
	return s
}
