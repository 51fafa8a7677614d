package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Setup creates a River client with all lifecycle workers registered and
// runs River's internal migrations. sweep drives the periodic lifecycle
// sweep at sweepInterval; pass a zero interval to disable scheduling
// (the standalone sweeper binary does its own driving). The caller must
// call client.Start() to begin processing jobs and client.Stop() for
// graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, sweep SweepFunc, sweepInterval time.Duration) (*Client, error) {
	driver := riversqlite.New(db)

	// Run River's own migrations (creates river_job, river_leader, etc.).
	// These are separate from the app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &TransitionWorker{})
	river.AddWorker(workers, &DeletionDueWorker{})
	river.AddWorker(workers, &ExpiryWarningWorker{})
	river.AddWorker(workers, &SweepWorker{sweep: sweep})

	cfg := &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
	}

	if sweepInterval > 0 {
		cfg.PeriodicJobs = []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(sweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return SweepJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		}
	}

	client, err := river.NewClient(driver, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
