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

	"leadflow_backend/internal/adapters/storage"
	"leadflow_backend/internal/catalog"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followups"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/nurturing"
	"leadflow_backend/internal/pipeline"
	"leadflow_backend/internal/realtime"
	"leadflow_backend/internal/tracking"
	"leadflow_backend/internal/whatsapp"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
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

	var applied int
	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		n, err := db.RunMigrations(ctx, cfg)
		applied = n
		return err
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete", "applied", applied)

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

	rdb, err := realtime.NewRedisClient(cfg)
	if err != nil {
		panic("failed to configure redis: " + err.Error())
	}
	if rdb == nil {
		log.Warn("REDIS_URL not configured; realtime events stay on this instance")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	presigner, err := storage.NewPresigner(cfg)
	if err != nil {
		panic("failed to initialize object storage: " + err.Error())
	}
	if presigner == nil {
		log.Warn("MINIO_ENDPOINT not configured; s3:// template media cannot be sent")
	}

	gateway := whatsapp.NewClient(cfg, log)
	if gateway == nil {
		log.Warn("WHATSAPP_URL not configured; send sweeps will fail every dispatch")
	}

	eventBus := events.NewInMemoryBus(log)
	clock := clockwork.NewRealClock()
	val := validator.New()
	appMetrics := metrics.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	catalogModule := catalog.NewModule(pool, val, log)
	trackingModule := tracking.NewModule(pool, cfg, eventBus, val, log)
	nurturingModule := nurturing.NewModule(pool, nurturing.Collaborators{
		Plans:    catalogModule.Service(),
		Gateway:  gateway,
		Links:    trackingModule.Service(),
		Media:    presigner,
		Observer: appMetrics,
	}, cfg, eventBus, clock, val, log)
	pipelineModule := pipeline.NewModule(pool, nurturingModule.Service(), eventBus, clock, val, log)
	followupsModule := followups.NewModule(pool, nurturingModule.Service(), cfg, eventBus, clock, val, log)
	realtimeModule := realtime.NewModule(rdb, eventBus, clock, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Metrics: appMetrics,
		Modules: []apphttp.Module{
			catalogModule,
			pipelineModule,
			nurturingModule,
			followupsModule,
			trackingModule,
			realtimeModule,
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
		return realtimeModule.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		eventBus.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
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

	return fmt.Errorf("%s: %w", name, lastErr)
}
