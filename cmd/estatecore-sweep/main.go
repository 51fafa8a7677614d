// Command estatecore-sweep runs one lifecycle sweep and exits. Meant to
// be driven by cron (the server also sweeps on its own timer; the two
// overlap safely). Exit code 0 means the sweep completed, even when
// individual tenants failed and were logged; non-zero means a
// sweep-level fatal error such as unreachable storage.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"

	fsmadapter "github.com/viczenith/estatecore/internal/adapter/fsm"
	riveradapter "github.com/viczenith/estatecore/internal/adapter/river"
	"github.com/viczenith/estatecore/internal/adapter/sqlite"
	"github.com/viczenith/estatecore/internal/app"
)

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "estatecore.db"), "path to the SQLite database")
	tenantID := flag.String("tenant", "", "sweep a single tenant instead of all")
	flag.Parse()

	os.Exit(run(*dbPath, *tenantID))
}

func run(dbPath, tenantID string) int {
	ctx := context.Background()

	repo, err := sqlite.New(dbPath)
	if err != nil {
		log.Printf("fatal: database: %v", err)
		return 1
	}
	defer repo.Close()

	// Insert-only River client: events enqueued here are processed by
	// the server's workers (or sit queued until one runs).
	client, err := insertOnlyClient(ctx, repo.DB())
	if err != nil {
		log.Printf("fatal: river: %v", err)
		return 1
	}

	publisher := riveradapter.NewPublisher()
	publisher.Bind(client)

	engine := app.NewEngine(repo, publisher, fsmadapter.New())
	sweeper := app.NewSweeper(repo, engine, publisher)

	summary, err := sweeper.Sweep(ctx, time.Now().UTC(), tenantID)
	if err != nil {
		log.Printf("fatal: sweep: %v", err)
		return 1
	}

	slog.Info("sweep complete",
		"checked", summary.Checked,
		"transitions", summary.Transitions,
		"failed", summary.Failed,
	)
	return 0
}

func insertOnlyClient(ctx context.Context, db *sql.DB) (*riveradapter.Client, error) {
	driver := riversqlite.New(db)

	// Ensure River's tables exist even when the CLI runs before the
	// server ever did.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, err
	}

	return river.NewClient(driver, &river.Config{})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
