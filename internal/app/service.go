package app

import (
	"context"
	"fmt"
	"time"

	"github.com/viczenith/estatecore/internal/domain"
)

// TenantService handles tenant registration and lookup. Lifecycle
// mutations live in Engine; this service never writes lifecycle fields.
type TenantService struct {
	repo      domain.TenantRepository
	publisher domain.EventPublisher
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(repo domain.TenantRepository, publisher domain.EventPublisher) *TenantService {
	return &TenantService{
		repo:      repo,
		publisher: publisher,
	}
}

// Register creates a tenant in the trial state with a fresh API key and
// publishes the trial-start event.
func (s *TenantService) Register(ctx context.Context, name, slug string, now time.Time) (domain.Tenant, error) {
	// Check slug uniqueness before creating.
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return domain.Tenant{}, &domain.SlugConflictError{Slug: slug}
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating tenant id: %w", err)
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating api key: %w", err)
	}

	tenant := domain.NewTenant(id, name, slug, now)
	tenant.APIKey = &apiKey

	if err := s.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}

	// Trial start is modeled as a transition from nowhere into trial so
	// the downstream alerting consumer sees new signups on the same feed.
	event := domain.TransitionEvent{
		TenantID: tenant.ID,
		To:       domain.StatusTrial,
		At:       tenant.CreatedAt,
	}
	if err := s.publisher.PublishTransition(ctx, event, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("publishing trial-start event: %w", err)
	}

	return tenant, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.repo.List(ctx, filter)
}
