package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/viczenith/estatecore/internal/domain"
)

// Signals carries the request-level inputs tenant resolution works from.
// The HTTP adapter fills it from the Authorization header, the Host
// header, and the authenticated principal's tenant affiliation.
type Signals struct {
	APIKey            string
	Host              string
	PrincipalTenantID string

	// Public marks endpoints that may legitimately run without a tenant.
	Public bool
}

// Resolver maps request signals to the acting tenant with a strict
// priority order: API key, then custom domain, then principal
// affiliation. The first authoritative signal present wins; there is no
// fallthrough past it. Resolution is a pure lookup with no side effects.
type Resolver struct {
	repo domain.TenantRepository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo domain.TenantRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the acting tenant for the given signals.
//
// Resolution answers only "who is asking": what the tenant's lifecycle
// state permits is the capability layer's decision, so a key for a
// graced or lapsed tenant still resolves and is policed per request.
//
// Failure modes are deliberate:
//   - a present-but-unknown API key is InvalidAPIKeyError, never a
//     fallthrough to weaker signals;
//   - an administratively disabled tenant is ErrTenantInactive, which the
//     transport layer must render as a bare access denial;
//   - no signal on a public endpoint is the ErrNoTenant sentinel, not a
//     failure.
func (r *Resolver) Resolve(ctx context.Context, signals Signals) (domain.Tenant, error) {
	if signals.APIKey != "" {
		tenant, err := r.repo.GetByAPIKey(ctx, signals.APIKey)
		if err != nil {
			if errors.Is(err, domain.ErrTenantNotFound) {
				return domain.Tenant{}, &domain.InvalidAPIKeyError{Reason: "unknown key"}
			}
			return domain.Tenant{}, fmt.Errorf("resolving by api key: %w", err)
		}
		if !tenant.Active {
			return domain.Tenant{}, domain.ErrTenantInactive
		}
		return tenant, nil
	}

	if signals.Host != "" {
		tenant, err := r.repo.GetByDomain(ctx, signals.Host)
		if err == nil {
			if !tenant.Active {
				return domain.Tenant{}, domain.ErrTenantInactive
			}
			return tenant, nil
		}
		if !errors.Is(err, domain.ErrTenantNotFound) {
			return domain.Tenant{}, fmt.Errorf("resolving by domain: %w", err)
		}
		// Host did not match a registered custom domain; weaker signals
		// may still identify the tenant.
	}

	if signals.PrincipalTenantID != "" {
		tenant, err := r.repo.GetByID(ctx, signals.PrincipalTenantID)
		if err != nil {
			if errors.Is(err, domain.ErrTenantNotFound) {
				return domain.Tenant{}, domain.ErrTenantNotFound
			}
			return domain.Tenant{}, fmt.Errorf("resolving by principal: %w", err)
		}
		if !tenant.Active {
			return domain.Tenant{}, domain.ErrTenantInactive
		}
		return tenant, nil
	}

	if signals.Public {
		return domain.Tenant{}, domain.ErrNoTenant
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}
