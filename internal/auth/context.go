package auth

import (
	"context"

	"github.com/billpay/backend/internal/models"
)

type contextKey string

const ctxPrincipalKey contextKey = "principal"

// WithPrincipal returns a context carrying the authenticated account.
func WithPrincipal(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, acc)
}

// PrincipalFromContext returns the authenticated account or nil.
func PrincipalFromContext(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxPrincipalKey).(*models.Account)
	return acc
}
