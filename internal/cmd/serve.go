package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/claytondukes/dibo-gems/internal/app"
	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/config"
	"github.com/claytondukes/dibo-gems/internal/lockstore"
	"github.com/claytondukes/dibo-gems/internal/observability"
	"github.com/claytondukes/dibo-gems/internal/storage/filestore"
	"github.com/claytondukes/dibo-gems/internal/storage/postgres"
	transporthttp "github.com/claytondukes/dibo-gems/internal/transport/http"
	"github.com/claytondukes/dibo-gems/migrations"
)

const startupTimeout = 5 * time.Second

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.NewSystem()

	var (
		metrics        observability.MetricsCollector = observability.NopCollector{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		collector := observability.NewPrometheusCollector()
		metrics = collector
		metricsHandler = collector.Handler()
	}

	locks := lockstore.New(clk,
		lockstore.WithDuration(cfg.Locks.Duration),
		lockstore.WithWriteGrace(cfg.Locks.WriteGrace),
		lockstore.WithMetrics(metrics),
		lockstore.WithLogger(logger),
	)
	go locks.RunSweeper(ctx, cfg.Locks.SweepInterval)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	issuer, err := auth.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, clk)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}
	if cfg.Auth.GoogleClientID == "" {
		logger.Warn("auth.google_client_id not set, sign-in will be rejected")
	}

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Locks: app.NewLockService(locks,
			app.WithAdmins(cfg.Auth.Admins),
			app.WithLockLogger(logger),
		),
		Gems:           app.NewGemService(repo, locks, clk, app.WithGemLogger(logger)),
		Login:          app.NewAuthService(auth.NewGoogleVerifier(cfg.Auth.GoogleClientID), issuer, logger),
		Sessions:       issuer,
		Limiter:        transporthttp.NewRateLimiter(cfg.Locks.RatePerMinute, cfg.Locks.Burst),
		Clock:          clk,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"lock_duration", cfg.Locks.Duration.String(),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// openRepository returns the configured gem store and a function that
// releases its resources.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app.GemRepository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := openPool(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewGemRepository(pool), pool.Close, nil
	default:
		store, err := filestore.New(cfg.Data.Dir, filestore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		watchCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := store.Watch(watchCtx); err != nil {
				logger.Warn("catalog watcher stopped, external edits need a restart", "error", err)
			}
		}()
		return store, cancel, nil
	}
}

// openPool connects to Postgres and brings the schema up to date.
func openPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	ran, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range ran {
		logger.Info("migration applied", "name", name)
	}
	return pool, nil
}
