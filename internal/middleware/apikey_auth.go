package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/models"
)

// Verifier resolves a presented API key to its account.
type Verifier interface {
	VerifyAPIKey(ctx context.Context, key string) (*models.Account, error)
}

// APIKeyAuth authenticates requests carrying "Authorization: Bearer <key>".
// Every authentication failure gets the same 401 body; the specific reason
// is only logged. On success the account is stored as the request principal.
func APIKeyAuth(v Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "API key required")
				return
			}

			acc, err := v.VerifyAPIKey(r.Context(), raw)
			if err != nil {
				if auth.IsAuthFailure(err) {
					log.Debug("api key rejected", "reason", err.Error(), "request_id", RequestIDFromCtx(r.Context()))
					writeError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				log.Error("api key verification failed", "error", err, "request_id", RequestIDFromCtx(r.Context()))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), acc)))
		})
	}
}

// RequireVerification rejects principals whose account has not been verified
// by an administrator. It must run after APIKeyAuth.
func RequireVerification(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc := auth.PrincipalFromContext(r.Context())
		if acc == nil {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !acc.IsVerified {
			writeError(w, http.StatusForbidden, "account verification required for this action")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
