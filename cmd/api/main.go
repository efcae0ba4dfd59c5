package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/app"
	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := infra.NewPostgresPoolWithRetry(ctx, cfg, 5, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	tokenMgr := auth.NewTokenManager(cfg.JWTSecret,
		cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry, cfg.JWTResetExpiry)

	var notifier service.Notifier
	if cfg.SMTPHost != "" {
		notifier = service.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendBaseURL, logger)
	} else {
		logger.Warn("SMTP not configured, emails disabled")
		notifier = service.NopNotifier{}
	}

	deps := app.RouterDeps{
		Pool:     pool,
		Redis:    rdb,
		TokenMgr: tokenMgr,
		Notifier: notifier,
		Logger:   logger,
		Config:   cfg,
	}

	svcs := app.Build(deps)
	if err := app.Bootstrap(ctx, pool, svcs, cfg, logger); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	svcs.Tokens.StartJanitor(ctx, time.Hour, logger)

	// Audit trail fan-out to Kafka. No-op producer when Kafka is disabled;
	// entries then stay queued in audit_log.
	producer := infra.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	if cfg.KafkaEnabled {
		publisher := infra.NewAuditPublisher(pool, repository.NewPgAuditRepository(), producer, logger)
		publisher.Start(ctx)
	}

	r := app.NewRouter(deps, svcs)

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
