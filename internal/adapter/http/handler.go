package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/viczenith/estatecore/internal/app"
	"github.com/viczenith/estatecore/internal/domain"
)

const timeFormat = time.RFC3339

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID                 string `json:"id" doc:"Unique identifier"`
	Name               string `json:"name" doc:"Display name"`
	Slug               string `json:"slug" doc:"URL-friendly tenancy identifier"`
	Status             string `json:"status" doc:"Stored lifecycle state"`
	TrialEndsAt        string `json:"trial_ends_at,omitempty" doc:"Trial window end (RFC 3339)"`
	SubscriptionEndsAt string `json:"subscription_ends_at,omitempty" doc:"Subscription window end (RFC 3339)"`
	GracePeriodEndsAt  string `json:"grace_period_ends_at,omitempty" doc:"Grace window end (RFC 3339)"`
	DataDeletionDate   string `json:"data_deletion_date,omitempty" doc:"Scheduled business-data deletion (RFC 3339)"`
	ReadOnly           bool   `json:"read_only" doc:"Whether the account is in read-only mode"`
	CreatedAt          string `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt          string `json:"updated_at" doc:"Last update timestamp (RFC 3339)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Slug:               t.Slug,
		Status:             string(t.Status),
		TrialEndsAt:        fmtOptTime(t.TrialEndsAt),
		SubscriptionEndsAt: fmtOptTime(t.SubscriptionEndsAt),
		GracePeriodEndsAt:  fmtOptTime(t.GracePeriodEndsAt),
		DataDeletionDate:   fmtOptTime(t.DataDeletionDate),
		ReadOnly:           t.ReadOnly,
		CreatedAt:          t.CreatedAt.Format(timeFormat),
		UpdatedAt:          t.UpdatedAt.Format(timeFormat),
	}
}

func fmtOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeFormat)
}

// --- Register Tenant ---

type RegisterTenantInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Slug string `json:"slug" minLength:"1" maxLength:"100" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-friendly tenancy identifier (lowercase, hyphens)"`
	}
}

type RegisterTenantOutput struct {
	Body struct {
		TenantResponse
		// The API key is returned exactly once, at registration.
		APIKey string `json:"api_key" doc:"Tenant API key (shown only at registration)"`
	}
}

// --- Get Tenant ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

// --- List Tenants ---

type ListTenantsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by stored status"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Renew ---

type RenewTenantInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		PeriodEnd time.Time `json:"period_end" doc:"New subscription period end (RFC 3339)"`
	}
}

type RenewTenantOutput struct {
	Body TenantResponse
}

// Register adds the tenant management routes to the Huma API. These are
// the platform-facing endpoints: registration is public, renew is the
// external payment collaborator's entry point.
func Register(api huma.API, svc *app.TenantService, engine *app.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "register-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Register a new tenant (starts the 14-day trial)",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *RegisterTenantInput) (*RegisterTenantOutput, error) {
		tenant, err := svc.Register(ctx, input.Body.Name, input.Body.Slug, time.Now().UTC())
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &RegisterTenantOutput{}
		out.Body.TenantResponse = toTenantResponse(tenant)
		if tenant.APIKey != nil {
			out.Body.APIKey = *tenant.APIKey
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		tenants, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "renew-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/renew",
		Summary:     "Renew a tenant's subscription",
		Description: "Invoked by the payment collaborator after a successful charge. Resets the tenant to active and clears every expiry artifact.",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *RenewTenantInput) (*RenewTenantOutput, error) {
		tenant, err := engine.Renew(ctx, input.ID, input.Body.PeriodEnd, time.Now().UTC())
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RenewTenantOutput{Body: toTenantResponse(tenant)}, nil
	})
}

// --- Tenant-scoped routes ---

type WhoAmIOutput struct {
	Body struct {
		Tenant TenantResponse `json:"tenant"`
		State  string         `json:"state" doc:"Lifecycle state evaluated at request time"`
		Can    struct {
			Read   bool `json:"read"`
			Write  bool `json:"write"`
			Export bool `json:"export"`
			API    bool `json:"api"`
		} `json:"can"`
	}
}

type CreateClientInput struct {
	Body struct {
		FullName string `json:"full_name" minLength:"1" maxLength:"255" doc:"Client display name"`
	}
}

type CreateClientOutput struct {
	Body struct {
		ClientNumber int64  `json:"client_number" doc:"Tenant-scoped monotonic client number"`
		FullName     string `json:"full_name"`
	}
}

type NextClientNumberOutput struct {
	Body struct {
		NextClientNumber int64 `json:"next_client_number" doc:"Value the next client creation will receive (informational)"`
	}
}

type ExportOutput struct {
	Body struct {
		Tenant     TenantResponse `json:"tenant"`
		ExportedAt string         `json:"exported_at"`
	}
}

// RegisterTenantScoped adds the routes that run behind the tenant
// resolution middleware. Every handler re-derives the lifecycle state
// and checks the capability it needs before touching anything.
func RegisterTenantScoped(api huma.API, sequences *app.SequenceAllocator) {
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Resolved tenant and current capability set",
		Tags:        []string{"Account"},
	}, func(ctx context.Context, _ *struct{}) (*WhoAmIOutput, error) {
		tenant, state, err := requireCapability(ctx, domain.CapRead)
		if err != nil {
			return nil, toHumaError(err)
		}
		caps := domain.CapabilitiesFor(state)

		out := &WhoAmIOutput{}
		out.Body.Tenant = toTenantResponse(tenant)
		out.Body.State = string(state)
		out.Body.Can.Read = caps.Read
		out.Body.Can.Write = caps.Write
		out.Body.Can.Export = caps.Export
		out.Body.Can.API = caps.API
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-client",
		Method:      http.MethodPost,
		Path:        "/api/v1/clients",
		Summary:     "Create a client record, minting its tenant-scoped number",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *CreateClientInput) (*CreateClientOutput, error) {
		tenant, _, err := requireCapability(ctx, domain.CapWrite)
		if err != nil {
			return nil, toHumaError(err)
		}

		number, err := sequences.Next(ctx, tenant.ID, "client")
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &CreateClientOutput{}
		out.Body.ClientNumber = number
		out.Body.FullName = input.Body.FullName
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-client-number",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients/next-preview",
		Summary:     "Preview the next client number without allocating it",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, _ *struct{}) (*NextClientNumberOutput, error) {
		tenant, _, err := requireCapability(ctx, domain.CapRead)
		if err != nil {
			return nil, toHumaError(err)
		}

		next, err := sequences.Preview(ctx, tenant.ID, "client")
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &NextClientNumberOutput{}
		out.Body.NextClientNumber = next
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-tenant-data",
		Method:      http.MethodGet,
		Path:        "/api/v1/export",
		Summary:     "Export tenant data",
		Tags:        []string{"Account"},
	}, func(ctx context.Context, _ *struct{}) (*ExportOutput, error) {
		tenant, _, err := requireCapability(ctx, domain.CapExport)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &ExportOutput{}
		out.Body.Tenant = toTenantResponse(tenant)
		out.Body.ExportedAt = time.Now().UTC().Format(timeFormat)
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors. Policy
// denials keep their user-actionable detail; inactive tenants do not
// reveal more than "access denied".
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound("tenant not found")
	}
	if errors.Is(err, domain.ErrTenantInactive) {
		return huma.Error403Forbidden("access denied")
	}

	var keyErr *domain.InvalidAPIKeyError
	if errors.As(err, &keyErr) {
		return huma.Error401Unauthorized(keyErr.Error())
	}

	var policyErr *domain.PolicyDeniedError
	if errors.As(err, &policyErr) {
		return huma.Error403Forbidden(policyErr.Error())
	}

	var slugErr *domain.SlugConflictError
	if errors.As(err, &slugErr) {
		return huma.Error409Conflict(slugErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
