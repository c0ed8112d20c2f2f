package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/billpay/backend/internal/admin"
	"github.com/billpay/backend/internal/auth"
	"github.com/billpay/backend/internal/billing"
	"github.com/billpay/backend/internal/config"
	"github.com/billpay/backend/internal/database"
	"github.com/billpay/backend/internal/execution"
	"github.com/billpay/backend/internal/middleware"
	"github.com/billpay/backend/internal/router"
	"github.com/billpay/backend/internal/validation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and DATABASE_URL is correct", "error", err)
		return err
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	slog.Info("Schema migrations applied")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		return err
	}
	slog.Info("River migrations applied")

	if cfg.SeedDemoData {
		if err := database.Seed(ctx, pool); err != nil {
			return err
		}
		slog.Info("Demo customers and bills seeded")
	}

	// Billing: insert func is set after River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn billing.InsertSettlementTxFunc
	insertSettlement := func(ctx context.Context, tx pgx.Tx, args execution.SettlePaymentArgs, runAt time.Time) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, tx, args, runAt)
	}

	billingSvc := billing.NewService(
		billing.NewRepository(pool),
		insertSettlement,
		billing.WithSettleDelay(cfg.PaymentSettleDelay),
		billing.WithLogger(logger),
	)

	periodicJobs, err := execution.PeriodicJobs(cfg.OverdueSweepSchedule)
	if err != nil {
		return err
	}
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers:      execution.NewWorkers(billingSvc, logger),
		PeriodicJobs: periodicJobs,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args execution.SettlePaymentArgs, runAt time.Time) error {
		_, err := riverClient.InsertTx(ctx, tx, args, &river.InsertOpts{ScheduledAt: runAt})
		return err
	}
	insertMu.Unlock()

	validator, err := validation.New()
	if err != nil {
		return err
	}

	authSvc := auth.NewService(
		auth.NewRepository(pool),
		auth.WithKeyTTL(cfg.APIKeyTTL),
		auth.WithLogger(logger),
	)

	if !cfg.AdminEnabled() {
		slog.Warn("Admin login disabled: set ADMIN_EMAIL, ADMIN_PASSWORD_HASH and JWT_SECRET to enable")
	}
	authn := admin.NewAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash, []byte(cfg.JWTSecret))

	limiter := middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst, logger)
	limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)

	apiHandler := router.New(router.Deps{
		Auth:      auth.NewHandler(authSvc, validator, logger),
		Admin:     admin.NewHandler(authn, authSvc, validator, logger),
		Billing:   billing.NewHandler(billingSvc, validator, logger),
		Verifier:  authSvc,
		AdminAuth: authn,
		Limiter:   limiter,
		Ping:      pool.Ping,
		Logger:    logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(apiHandler)

	// Start River client (processes jobs)
	if err := riverClient.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River client stop failed", "error", err)
	}
	slog.Info("Server stopped")
	return nil
}
