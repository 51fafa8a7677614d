package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/viczenith/estatecore/internal/app"
	"github.com/viczenith/estatecore/internal/domain"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	viaAPIKeyKey
)

// TenantFromContext returns the tenant the middleware resolved for this
// request. The tenant travels explicitly in the request context; there
// is no ambient "current tenant" global.
func TenantFromContext(ctx context.Context) (domain.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(domain.Tenant)
	return t, ok
}

// viaAPIKey reports whether the request authenticated with an API key,
// which additionally requires the api capability.
func viaAPIKey(ctx context.Context) bool {
	v, _ := ctx.Value(viaAPIKeyKey).(bool)
	return v
}

// ResolveTenant is the middleware guarding tenant-scoped routes. It runs
// before any business logic: extract signals, resolve the tenant, attach
// it to the context, or fail the request with a structured error.
func ResolveTenant(resolver *app.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signals := app.Signals{
				APIKey:            apiKeyFromHeader(r.Header.Get("Authorization")),
				Host:              hostOnly(r.Host),
				PrincipalTenantID: r.Header.Get("X-Principal-Tenant"),
			}

			tenant, err := resolver.Resolve(r.Context(), signals)
			if err != nil {
				writeResolutionError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenant)
			ctx = context.WithValue(ctx, viaAPIKeyKey, signals.APIKey != "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// apiKeyFromHeader extracts the key from "Authorization: ApiKey <key>".
// Other schemes (Bearer etc.) are not tenant signals and are ignored.
func apiKeyFromHeader(header string) string {
	const scheme = "ApiKey "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}

// hostOnly strips an optional port from the Host header.
func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// writeResolutionError renders resolver failures without leaking tenant
// existence details: an administratively disabled tenant reads the same
// as any other denial.
func writeResolutionError(w http.ResponseWriter, err error) {
	var invalidKey *domain.InvalidAPIKeyError
	switch {
	case errors.As(err, &invalidKey):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", invalidKey.Error())
	case errors.Is(err, domain.ErrTenantInactive):
		writeProblem(w, http.StatusForbidden, "Forbidden", "access denied")
	case errors.Is(err, domain.ErrTenantNotFound), errors.Is(err, domain.ErrNoTenant):
		writeProblem(w, http.StatusNotFound, "Not Found", "tenant not found")
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "internal server error")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// requireCapability checks the resolved tenant's evaluated state against
// a capability. State is derived from the lifecycle clock at request
// time, so a tenant whose stored status is stale between sweeps is still
// policed correctly. Requests authenticated by API key must additionally
// hold the api capability.
func requireCapability(ctx context.Context, cap domain.Capability) (domain.Tenant, domain.Status, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return domain.Tenant{}, "", domain.ErrTenantNotFound
	}

	state := domain.EvaluateState(tenant, time.Now().UTC())
	if viaAPIKey(ctx) {
		if err := domain.CheckCapability(state, domain.CapAPI); err != nil {
			return tenant, state, err
		}
	}
	if err := domain.CheckCapability(state, cap); err != nil {
		return tenant, state, err
	}
	return tenant, state, nil
}
