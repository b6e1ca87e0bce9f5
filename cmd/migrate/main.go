// migrate applies the goose migrations to DATABASE_URL.
//
// Usage: go run ./cmd/migrate [up|status|down]
package main

import (
	"io/fs"
	"log"
	"os"

	"procurement-engine/internal/config"
	"procurement-engine/internal/db"
	"procurement-engine/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	var (
		fsys fs.FS = migrations.FS
		dir        = "."
	)
	if cfg.MigrationsDir != "" {
		fsys, dir = nil, cfg.MigrationsDir
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = db.Migrate(cfg.DatabaseURL, fsys, dir)
	case "status":
		err = db.MigrationStatus(cfg.DatabaseURL, fsys, dir)
	case "down":
		err = db.Rollback(cfg.DatabaseURL, fsys, dir)
	default:
		log.Fatalf("Unknown command: %s (expected up, status or down)", cmd)
	}
	if err != nil {
		log.Fatalf("[FAIL] %s: %v", cmd, err)
	}
	log.Printf("[DONE] migrate %s", cmd)
}
