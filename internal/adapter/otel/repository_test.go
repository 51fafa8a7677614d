package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/viczenith/estatecore/internal/adapter/otel"
	"github.com/viczenith/estatecore/internal/domain"
)

var traceBase = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	tenants map[string]domain.Tenant
}

func newMockRepo() *mockRepo {
	return &mockRepo{tenants: make(map[string]domain.Tenant)}
}

func (m *mockRepo) Create(_ context.Context, t domain.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockRepo) GetByAPIKey(_ context.Context, key string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.APIKey != nil && *t.APIKey == key {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockRepo) GetByDomain(_ context.Context, host string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.CustomDomain != nil && *t.CustomDomain == host {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) UpdateLifecycle(_ context.Context, t domain.Tenant) (domain.Tenant, error) {
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	t.Version++
	m.tenants[t.ID] = t
	return t, nil
}

// --- Tests ---

func TestTracingRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	tenant := domain.NewTenant("t-1", "Acme", "acme", traceBase)
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "TenantRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "TenantRepository.Create")
	}

	assertAttribute(t, spans[0], "tenant.id", "t-1")
	assertAttribute(t, spans[0], "tenant.slug", "acme")
}

func TestTracingRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingRepository(newMockRepo())

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingRepository_GetByAPIKey_NeverRecordsKey(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	tenant := domain.NewTenant("t-1", "Acme", "acme", traceBase)
	key := "ek_supersecret"
	tenant.APIKey = &key
	inner.tenants["t-1"] = tenant

	got, err := repo.GetByAPIKey(context.Background(), "ek_supersecret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t-1" {
		t.Errorf("ID = %q, want %q", got.ID, "t-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "tenant.id", "t-1")
	for _, attr := range spans[0].Attributes {
		if attr.Value.Emit() == "ek_supersecret" {
			t.Errorf("span attribute %q leaks the api key", attr.Key)
		}
	}
}

func TestTracingRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	inner.tenants["t-1"] = domain.NewTenant("t-1", "A", "a", traceBase)
	inner.tenants["t-2"] = domain.NewTenant("t-2", "B", "b", traceBase)

	tenants, err := repo.List(context.Background(), domain.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tenants) != 2 {
		t.Errorf("got %d tenants, want 2", len(tenants))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingRepository_UpdateLifecycle_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	tenant := domain.NewTenant("t-1", "Acme", "acme", traceBase)
	inner.tenants["t-1"] = tenant

	tenant.Status = domain.StatusGrace
	if _, err := repo.UpdateLifecycle(context.Background(), tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "TenantRepository.UpdateLifecycle" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "TenantRepository.UpdateLifecycle")
	}
	assertAttribute(t, spans[0], "tenant.status", "grace")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
