package river

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/viczenith/estatecore/internal/adapter/sqlite"
	"github.com/viczenith/estatecore/internal/app"
	"github.com/viczenith/estatecore/internal/domain"
)

var jobBase = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func startTestClient(t *testing.T) (*Publisher, *Client) {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "estatecore.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	noSweep := func(context.Context, time.Time, string) (app.SweepSummary, error) {
		return app.SweepSummary{}, nil
	}
	client, err := Setup(ctx, repo.DB(), noSweep, 0)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	publisher := NewPublisher()
	publisher.Bind(client)

	if err := client.Start(ctx); err != nil {
		t.Fatalf("starting river client: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Stop(stopCtx)
	})

	return publisher, client
}

func waitForCompletion(t *testing.T, events <-chan *river.Event, kind string) *river.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Job.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s job to complete", kind)
		}
	}
}

func TestPublishTransition_JobRunsToCompletion(t *testing.T) {
	publisher, client := startTestClient(t)

	events, cancel := client.Subscribe(river.EventKindJobCompleted)
	defer cancel()

	tenant := domain.NewTenant("t1", "Acme Estates", "acme", jobBase)
	ev := domain.TransitionEvent{
		TenantID: "t1",
		From:     domain.StatusTrial,
		To:       domain.StatusGrace,
		At:       jobBase,
	}
	if err := publisher.PublishTransition(context.Background(), ev, tenant); err != nil {
		t.Fatalf("PublishTransition failed: %v", err)
	}

	completed := waitForCompletion(t, events, TransitionJobArgs{}.Kind())

	var args TransitionJobArgs
	if err := json.Unmarshal(completed.Job.EncodedArgs, &args); err != nil {
		t.Fatalf("decoding job args: %v", err)
	}
	if args.TenantID != "t1" || args.From != "trial" || args.To != "grace" {
		t.Errorf("job args = %+v", args)
	}
	if args.Slug != "acme" {
		t.Errorf("Slug = %q, want %q", args.Slug, "acme")
	}
}

func TestPublishDeletionDue_JobRunsToCompletion(t *testing.T) {
	publisher, client := startTestClient(t)

	events, cancel := client.Subscribe(river.EventKindJobCompleted)
	defer cancel()

	tenant := domain.NewTenant("t1", "Acme Estates", "acme", jobBase)
	if err := publisher.PublishDeletionDue(context.Background(), tenant, jobBase); err != nil {
		t.Fatalf("PublishDeletionDue failed: %v", err)
	}

	completed := waitForCompletion(t, events, DeletionDueJobArgs{}.Kind())

	var args DeletionDueJobArgs
	if err := json.Unmarshal(completed.Job.EncodedArgs, &args); err != nil {
		t.Fatalf("decoding job args: %v", err)
	}
	if args.TenantID != "t1" {
		t.Errorf("TenantID = %q, want %q", args.TenantID, "t1")
	}
}

func TestPublishExpiryWarning_JobRunsToCompletion(t *testing.T) {
	publisher, client := startTestClient(t)

	events, cancel := client.Subscribe(river.EventKindJobCompleted)
	defer cancel()

	tenant := domain.NewTenant("t1", "Acme Estates", "acme", jobBase)
	if err := publisher.PublishExpiryWarning(context.Background(), tenant, 3); err != nil {
		t.Fatalf("PublishExpiryWarning failed: %v", err)
	}

	completed := waitForCompletion(t, events, ExpiryWarningJobArgs{}.Kind())

	var args ExpiryWarningJobArgs
	if err := json.Unmarshal(completed.Job.EncodedArgs, &args); err != nil {
		t.Fatalf("decoding job args: %v", err)
	}
	if args.DaysRemaining != 3 {
		t.Errorf("DaysRemaining = %d, want 3", args.DaysRemaining)
	}
}

func TestPublish_Unbound(t *testing.T) {
	publisher := NewPublisher()

	tenant := domain.NewTenant("t1", "Acme Estates", "acme", jobBase)
	err := publisher.PublishTransition(context.Background(), domain.TransitionEvent{TenantID: "t1"}, tenant)
	if err == nil {
		t.Error("publishing before Bind should fail")
	}
}

func TestSweepWorker_DelegatesToSweep(t *testing.T) {
	var gotTenant string
	called := false
	worker := &SweepWorker{sweep: func(_ context.Context, _ time.Time, tenantID string) (app.SweepSummary, error) {
		called = true
		gotTenant = tenantID
		return app.SweepSummary{Checked: 1}, nil
	}}

	job := &river.Job[SweepJobArgs]{JobRow: &rivertype.JobRow{ID: 1}}
	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Work failed: %v", err)
	}
	if !called {
		t.Fatal("sweep function was not invoked")
	}
	if gotTenant != "" {
		t.Errorf("periodic sweep should cover all tenants, got filter %q", gotTenant)
	}
}
