// Command migrate applies the Postgres schema migrations. Usage:
//
//	migrate up|down|drop
package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/makai-tours/skydesk/internal/config"
)

func main() {
	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	mig, err := migrate.New("file://migrations/postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer mig.Close()

	switch action {
	case "up":
		err = mig.Up()
	case "down":
		err = mig.Steps(-1)
	case "drop":
		err = mig.Down()
	default:
		slog.Error("unknown action", "action", action)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		slog.Error("migration failed", "action", action, "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete", "action", action)
}
