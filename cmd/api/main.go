package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viacrm_backend/internal/archive"
	"viacrm_backend/internal/email"
	"viacrm_backend/internal/events"
	apphttp "viacrm_backend/internal/http"
	"viacrm_backend/internal/http/router"
	"viacrm_backend/internal/ingest"
	"viacrm_backend/internal/leads"
	leadrepo "viacrm_backend/internal/leads/repository"
	"viacrm_backend/internal/leads/service"
	"viacrm_backend/internal/notification"
	"viacrm_backend/internal/reasons"
	"viacrm_backend/internal/scheduler"
	"viacrm_backend/internal/whatsapp"
	"viacrm_backend/migrations"
	"viacrm_backend/platform/config"
	"viacrm_backend/platform/db"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/metrics"
	"viacrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
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

	var (
		leadStore   leadrepo.Store
		reasonsRepo reasons.Repository
		health      apphttp.HealthChecker
	)

	if cfg.UsesMemoryStore() {
		log.Warn("STORE_DRIVER=memory; leads are not persisted")
		leadStore = leadrepo.NewMemoryStore()
		reasonsRepo = reasons.NewMemoryRepository()
	} else {
		pool := connectDatabase(ctx, cfg, log)
		defer pool.Close()

		leadStore = leadrepo.New(pool)
		reasonsRepo = reasons.NewPgRepository(pool)
		health = pool
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	appMetrics := metrics.New()
	val := validator.New()

	reentryNotifier, closeNotifier := initReentryNotifier(cfg, log)
	if closeNotifier != nil {
		defer closeNotifier()
	}

	notifyOpts := []notification.Option{
		notification.WithMailer(notification.NewMailer(email.NewSender(cfg), cfg.GetManagerNotifyEmail(), log)),
	}
	if reentryNotifier != nil {
		notifyOpts = append(notifyOpts, notification.WithNotifier(reentryNotifier))
	}
	notification.New(log, notifyOpts...).RegisterHandlers(eventBus)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	leadOpts := []service.Option{
		service.WithMetrics(appMetrics),
		service.WithTriageBranch(cfg.GetTriageBranchID()),
	}
	if waClient := whatsapp.NewClient(cfg, log); waClient != nil {
		leadOpts = append(leadOpts, service.WithSender(waClient))
	} else {
		log.Warn("WhatsApp credentials not configured; outbound messages disabled")
	}
	leadsModule := leads.NewModule(leadStore, eventBus, val, log, leadOpts...)

	correlatorOpts := []whatsapp.CorrelatorOption{whatsapp.WithMetrics(appMetrics)}
	if webhookArchive := initWebhookArchive(ctx, cfg, log); webhookArchive != nil {
		correlatorOpts = append(correlatorOpts, whatsapp.WithArchive(webhookArchive))
	}
	correlator := whatsapp.NewCorrelator(leadsModule.Service(), cfg.GetWhatsAppDefaultTenantID(), log, correlatorOpts...)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		Metrics:  appMetrics,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			ingest.NewModule(leadsModule.Service(), cfg.GetIngestAPIKey()),
			whatsapp.NewModule(correlator, cfg.GetWhatsAppVerifyToken()),
			reasons.NewModule(reasonsRepo, val),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		app.EventBus.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) *pgxpool.Pool {
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
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")
	return pool
}

func initReentryNotifier(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; reentry alerts are sent inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initWebhookArchive returns nil when MinIO is not configured or unreachable;
// archiving is best-effort and never blocks webhook processing.
func initWebhookArchive(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) archive.Archiver {
	if !cfg.IsMinIOEnabled() {
		log.Info("MinIO not configured; provider webhooks are not archived")
		return nil
	}

	store, err := archive.NewMinIOArchive(cfg)
	if err != nil {
		log.Error("failed to initialize webhook archive", "error", err)
		return nil
	}
	if err := withRetry(ctx, log, "ensure webhook archive bucket", 3, 2*time.Second, func() error {
		return store.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure webhook archive bucket", "error", err, "bucket", cfg.GetMinioBucketWebhookArchive())
		return nil
	}
	return store
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
