package main

import (
	"context"
	"os"

	"leadflow_backend/internal/catalog"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// Usage: catalog-seed <catalog.yaml>
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	if len(os.Args) != 2 {
		log.Error("usage: catalog-seed <catalog.yaml>")
		os.Exit(2)
	}
	path := os.Args[1]
	log.Info("starting catalog seed", "file", path)

	f, err := os.Open(path)
	if err != nil {
		log.Error("failed to open catalog file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	ctx := context.Background()
	if _, err := db.RunMigrations(ctx, cfg); err != nil {
		log.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	res, err := catalog.NewModule(pool, validator.New(), log).Service().Import(ctx, f)
	if err != nil {
		log.Error("catalog import failed", "error", err)
		os.Exit(1)
	}

	log.Info("catalog seeded",
		"categories", res.Categories,
		"topics", res.Topics,
		"templates", res.Templates,
		"plans", res.Plans,
		"steps", res.Steps,
	)
}
