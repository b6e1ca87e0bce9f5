package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"procurement-engine/internal/adapters/cli"
	"procurement-engine/internal/adapters/repl"
	"procurement-engine/internal/app"
	"procurement-engine/internal/config"
	"procurement-engine/internal/core"
	"procurement-engine/internal/db"
	"procurement-engine/internal/logger"
	"procurement-engine/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	opts := cli.Options{JWTSecret: cfg.JWTSecret, Out: os.Stdout}

	ctx := context.Background()
	args := os.Args[1:]

	// token only needs the secret.
	if len(args) > 0 && args[0] == "token" {
		cli.Run(ctx, nil, opts, args)
		return
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	zl, err := logger.New(cfg.Environment, "warn")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	store := core.NewPostgresStore(pool)
	svc := app.NewAppService(
		core.NewProcurementService(store, store, zl, nil),
		session.NewMemoryStore(cfg.Redis.SessionTTL),
		zl,
	)

	if len(args) > 0 {
		cli.Run(ctx, svc, opts, args)
		return
	}
	repl.Run(ctx, svc, opts, bufio.NewReader(os.Stdin))
}
