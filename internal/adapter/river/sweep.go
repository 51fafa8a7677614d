package river

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/viczenith/estatecore/internal/app"
)

// SweepFunc runs one lifecycle sweep. Matches app.Sweeper.Sweep.
type SweepFunc func(ctx context.Context, now time.Time, tenantID string) (app.SweepSummary, error)

// SweepWorker runs the periodic lifecycle sweep inside the server.
// Overlapping runs are safe: Advance is idempotent and version-guarded,
// so a slow previous sweep still running applies nothing twice.
type SweepWorker struct {
	river.WorkerDefaults[SweepJobArgs]

	sweep SweepFunc
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepJobArgs]) error {
	summary, err := w.sweep(ctx, time.Now().UTC(), "")
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "lifecycle sweep complete",
		"checked", summary.Checked,
		"transitions", summary.Transitions,
		"failed", summary.Failed,
		"job_id", job.ID,
	)
	return nil
}
