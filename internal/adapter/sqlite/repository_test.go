package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/viczenith/estatecore/internal/domain"
)

var repoBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestRepo(t *testing.T) *TenantRepository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "estatecore.db"))
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTenant(t *testing.T, repo *TenantRepository, id string) domain.Tenant {
	t.Helper()
	tenant := domain.NewTenant(id, "Tenant "+id, "slug-"+id, repoBase)
	key := "ek_" + id
	host := id + ".estates.example"
	tenant.APIKey = &key
	tenant.CustomDomain = &host
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seeding tenant %s: %v", id, err)
	}
	return tenant
}

func TestCreateAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	created := seedTenant(t, repo, "t1")

	got, err := repo.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != created.Name || got.Slug != created.Slug {
		t.Errorf("got %q/%q, want %q/%q", got.Name, got.Slug, created.Name, created.Slug)
	}
	if got.Status != domain.StatusTrial {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusTrial)
	}
	if got.TrialEndsAt == nil || !got.TrialEndsAt.Equal(*created.TrialEndsAt) {
		t.Errorf("TrialEndsAt = %v, want %v", got.TrialEndsAt, created.TrialEndsAt)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if !got.Active {
		t.Error("Active should round-trip as true")
	}
}

func TestGetBySlug(t *testing.T) {
	repo := openTestRepo(t)
	seedTenant(t, repo, "t1")

	got, err := repo.GetBySlug(context.Background(), "slug-t1")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("ID = %q, want %q", got.ID, "t1")
	}
}

func TestGetByAPIKey(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedTenant(t, repo, "t1")

	got, err := repo.GetByAPIKey(ctx, "ek_t1")
	if err != nil {
		t.Fatalf("GetByAPIKey failed: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("ID = %q, want %q", got.ID, "t1")
	}

	if _, err := repo.GetByAPIKey(ctx, "ek_nope"); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("unknown key error = %v, want ErrTenantNotFound", err)
	}
}

func TestGetByDomain(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedTenant(t, repo, "t1")

	got, err := repo.GetByDomain(ctx, "t1.estates.example")
	if err != nil {
		t.Fatalf("GetByDomain failed: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("ID = %q, want %q", got.ID, "t1")
	}

	if _, err := repo.GetByDomain(ctx, "nobody.example"); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("unknown host error = %v, want ErrTenantNotFound", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestCreate_SlugConflict(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedTenant(t, repo, "t1")

	dup := domain.NewTenant("t2", "Other", "slug-t1", repoBase)
	err := repo.Create(ctx, dup)

	var conflict *domain.SlugConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want SlugConflictError", err)
	}
	if conflict.Slug != "slug-t1" {
		t.Errorf("conflict.Slug = %q, want %q", conflict.Slug, "slug-t1")
	}
}

func TestList_FilterAndPaging(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		seedTenant(t, repo, id)
	}

	all, err := repo.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List returned %d tenants, want 3", len(all))
	}

	page, err := repo.List(ctx, domain.ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List with paging failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("paged List returned %d tenants, want 1", len(page))
	}

	status := domain.StatusActive
	none, err := repo.List(ctx, domain.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("filtered List failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("filtered List returned %d tenants, want 0", len(none))
	}
}

func TestUpdateLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "t1")

	graceEnd := repoBase.Add(domain.GraceWindow)
	tenant.Status = domain.StatusGrace
	tenant.GracePeriodEndsAt = &graceEnd

	updated, err := repo.UpdateLifecycle(ctx, tenant)
	if err != nil {
		t.Fatalf("UpdateLifecycle failed: %v", err)
	}
	if updated.Version != tenant.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, tenant.Version+1)
	}

	reread, _ := repo.GetByID(ctx, "t1")
	if reread.Status != domain.StatusGrace {
		t.Errorf("Status = %q, want %q", reread.Status, domain.StatusGrace)
	}
	if reread.GracePeriodEndsAt == nil || !reread.GracePeriodEndsAt.Equal(graceEnd) {
		t.Errorf("GracePeriodEndsAt = %v, want %v", reread.GracePeriodEndsAt, graceEnd)
	}
}

func TestUpdateLifecycle_VersionConflict(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	tenant := seedTenant(t, repo, "t1")

	// First writer wins.
	first := tenant
	first.Status = domain.StatusGrace
	if _, err := repo.UpdateLifecycle(ctx, first); err != nil {
		t.Fatalf("first UpdateLifecycle failed: %v", err)
	}

	// Second writer still holds the stale version token.
	stale := tenant
	stale.Status = domain.StatusReadOnly
	_, err := repo.UpdateLifecycle(ctx, stale)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("error = %v, want ErrVersionConflict", err)
	}

	reread, _ := repo.GetByID(ctx, "t1")
	if reread.Status != domain.StatusGrace {
		t.Errorf("stale write leaked; Status = %q", reread.Status)
	}
}

func TestUpdateLifecycle_NotFound(t *testing.T) {
	repo := openTestRepo(t)

	ghost := domain.NewTenant("ghost", "Ghost", "ghost", repoBase)
	_, err := repo.UpdateLifecycle(context.Background(), ghost)
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestNullableFieldsRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	bare := domain.NewTenant("bare", "Bare", "bare", repoBase)
	bare.TrialEndsAt = nil
	if err := repo.Create(ctx, bare); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "bare")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TrialEndsAt != nil || got.GracePeriodEndsAt != nil || got.DataDeletionDate != nil {
		t.Errorf("nil windows did not round-trip: %+v", got)
	}
	if got.APIKey != nil || got.CustomDomain != nil {
		t.Errorf("nil identity fields did not round-trip: %+v", got)
	}
}
