package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency_backoffice_backend/internal/audit"
	"agency_backoffice_backend/internal/dialer"
	"agency_backoffice_backend/internal/email"
	"agency_backoffice_backend/internal/events"
	apphttp "agency_backoffice_backend/internal/http"
	"agency_backoffice_backend/internal/http/router"
	"agency_backoffice_backend/internal/leads"
	"agency_backoffice_backend/internal/notification"
	"agency_backoffice_backend/internal/reconcile"
	"agency_backoffice_backend/platform/archive"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/db"
	"agency_backoffice_backend/platform/logger"
	"agency_backoffice_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	archiver := initArchiver(ctx, cfg, log)
	sender := initSender(cfg, log)
	val := validator.New()

	defaultAgencyID, err := uuid.Parse(cfg.GetFallbackAgencyID())
	if err != nil {
		log.Error("FALLBACK_AGENCY_ID is not a valid UUID", "value", cfg.GetFallbackAgencyID())
		panic("FALLBACK_AGENCY_ID is not a valid UUID")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Event subscribers (not HTTP-facing)
	notificationModule := notification.NewModule(pool, sender, cfg.GetEmailFromAddress(), log)
	notificationModule.RegisterHandlers(eventBus)
	auditModule := audit.NewModule(pool, log)
	auditModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(pool, cfg, defaultAgencyID, eventBus, archiver, log)
	dialerModule := dialer.NewModule(pool, cfg, eventBus, val, log)
	reconcileModule := reconcile.NewModule(pool, cfg, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			dialerModule,
			reconcileModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initArchiver returns the MinIO-backed payload archive when object storage
// is configured, otherwise a no-op store. Raw payload retention is a
// nice-to-have; missing storage must never block ingestion.
func initArchiver(ctx context.Context, cfg *config.Config, log *logger.Logger) archive.Store {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MinIO not configured; raw payload archiving disabled")
		return archive.NopStore{}
	}

	store, err := archive.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize payload archive", "error", err)
		return archive.NopStore{}
	}

	if err := withRetry(ctx, log, "ensure raw payload bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure raw payload bucket", "error", err)
		return archive.NopStore{}
	}

	log.Info("payload archive initialized", "bucket", cfg.GetMinioBucketRawPayloads())
	return store
}

func initSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled")
		return email.NopSender{}
	}
	return email.NewSMTPSender(cfg)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
