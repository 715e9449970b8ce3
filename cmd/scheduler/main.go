package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/adapters/storage"
	"leadflow_backend/internal/catalog"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/nurturing"
	"leadflow_backend/internal/scheduler"
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
	log.Info("starting scheduler", "env", cfg.Env, "auto_resume_cron", cfg.GetAutoResumeCron(), "send_cron", cfg.GetSendCron())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	presigner, err := storage.NewPresigner(cfg)
	if err != nil {
		panic("failed to initialize object storage: " + err.Error())
	}

	// Events published by sweeps stay in this process; the API instances
	// relay their own through the realtime channel.
	eventBus := events.NewInMemoryBus(log)
	clock := clockwork.NewRealClock()
	val := validator.New()

	catalogModule := catalog.NewModule(pool, val, log)
	trackingModule := tracking.NewModule(pool, cfg, eventBus, val, log)
	nurturingModule := nurturing.NewModule(pool, nurturing.Collaborators{
		Plans:    catalogModule.Service(),
		Gateway:  whatsapp.NewClient(cfg, log),
		Links:    trackingModule.Service(),
		Media:    presigner,
		Observer: metrics.New(),
	}, cfg, eventBus, clock, val, log)

	worker, err := scheduler.NewWorker(cfg, nurturingModule.Service(), log)
	if err != nil {
		log.Error("failed to create scheduler worker", "error", err)
		os.Exit(1)
	}
	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to create periodic scheduler", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return periodic.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	eventBus.Wait()
	log.Info("scheduler stopped")
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
