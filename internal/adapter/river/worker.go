package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// TransitionWorker processes lifecycle transition jobs. It is the
// in-process stand-in for the notification/alerting consumer: it logs
// the transition with the severity the alerting system would use.
// Webhooks and email delivery hang off this worker in deployments.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	level := slog.LevelInfo
	if job.Args.To == "read_only" {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "lifecycle transition",
		"tenant_id", job.Args.TenantID,
		"tenant_slug", job.Args.Slug,
		"from", job.Args.From,
		"to", job.Args.To,
		"at", job.Args.At,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// DeletionDueWorker consumes deletion-due signals. Actual deletion of
// the tenant's business records belongs to the external purge job; this
// worker only hands the signal over. The tenant row itself is retained
// for potential reactivation.
type DeletionDueWorker struct {
	river.WorkerDefaults[DeletionDueJobArgs]
}

func (w *DeletionDueWorker) Work(ctx context.Context, job *river.Job[DeletionDueJobArgs]) error {
	slog.WarnContext(ctx, "tenant data deletion due",
		"tenant_id", job.Args.TenantID,
		"tenant_slug", job.Args.Slug,
		"due_at", job.Args.DueAt,
		"job_id", job.ID,
	)
	return nil
}

// ExpiryWarningWorker consumes upcoming-expiry announcements for the
// alerting system.
type ExpiryWarningWorker struct {
	river.WorkerDefaults[ExpiryWarningJobArgs]
}

func (w *ExpiryWarningWorker) Work(ctx context.Context, job *river.Job[ExpiryWarningJobArgs]) error {
	level := slog.LevelInfo
	if job.Args.DaysRemaining <= 1 {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "subscription expiring soon",
		"tenant_id", job.Args.TenantID,
		"tenant_slug", job.Args.Slug,
		"days_remaining", job.Args.DaysRemaining,
		"job_id", job.ID,
	)
	return nil
}
