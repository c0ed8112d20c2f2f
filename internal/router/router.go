package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/billpay/backend/internal/admin"
	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/billing"
	"github.com/billpay/backend/internal/metrics"
	"github.com/billpay/backend/internal/middleware"
)

// Deps are the handlers and guards the router wires together.
type Deps struct {
	Auth      *auth.Handler
	Admin     *admin.Handler
	Billing   *billing.Handler
	Verifier  middleware.Verifier
	AdminAuth middleware.TokenValidator
	Limiter   *middleware.RateLimiter
	// Ping reports storage health on /healthz. Optional.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// New returns the API handler with request ids and access logging applied.
func New(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	requireKey := middleware.APIKeyAuth(d.Verifier, log)
	requireAdmin := middleware.RequireAdmin(d.AdminAuth)
	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Handler(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", limited(d.Auth.Register))
	mux.Handle("POST /api/auth/login", limited(d.Auth.Login))
	mux.Handle("POST /api/auth/regenerate-key", requireKey(http.HandlerFunc(d.Auth.RegenerateKey)))
	mux.Handle("GET /api/auth/profile", requireKey(http.HandlerFunc(d.Auth.Profile)))

	mux.Handle("POST /api/admin/login", limited(d.Admin.Login))
	mux.Handle("GET /api/admin/accounts", requireAdmin(http.HandlerFunc(d.Admin.ListAccounts)))
	mux.Handle("GET /api/admin/accounts/{id}", requireAdmin(http.HandlerFunc(d.Admin.GetAccount)))
	mux.Handle("POST /api/admin/accounts/{id}/status", requireAdmin(http.HandlerFunc(d.Admin.SetStatus)))
	mux.Handle("POST /api/admin/accounts/{id}/verify", requireAdmin(http.HandlerFunc(d.Admin.Verify)))

	mux.HandleFunc("GET /api/providers/{billType}", d.Billing.Providers)
	mux.Handle("POST /api/bills/lookup", requireKey(http.HandlerFunc(d.Billing.LookupBill)))
	mux.Handle("POST /api/payments", requireKey(middleware.RequireVerification(http.HandlerFunc(d.Billing.CreatePayment))))
	mux.Handle("GET /api/payments/{transactionId}", requireKey(http.HandlerFunc(d.Billing.GetPayment)))
	mux.Handle("GET /api/payments/history/{customerId}", requireKey(http.HandlerFunc(d.Billing.PaymentHistory)))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", healthz(d.Ping))

	// RequestID must wrap AccessLog so the mux sets Pattern on the request
	// AccessLog reads.
	return middleware.RequestID(middleware.AccessLog(log)(mux))
}

func healthz(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
