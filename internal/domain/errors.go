package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	// ErrTenantNotFound means no tenant matched the given identifier.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive means the tenant resolved but is administratively
	// disabled. Callers must surface it as a bare access denial; it must
	// not leak more than "access denied" to unauthenticated callers.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrNoTenant is the explicit "public request, no tenant" sentinel
	// returned by the resolver for public endpoints. It is not a failure.
	ErrNoTenant = errors.New("no tenant in request")

	// ErrVersionConflict signals an optimistic-concurrency loss on a
	// lifecycle write. Transient: callers reload and retry.
	ErrVersionConflict = errors.New("tenant version conflict")

	// ErrSequenceConflict signals a transient conflict on a sequence
	// counter increment. Retried internally, never surfaced to callers.
	ErrSequenceConflict = errors.New("sequence allocation conflict")
)

// SlugConflictError is returned when a tenant slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// InvalidAPIKeyError is returned when a presented API key does not
// identify any registered tenant.
type InvalidAPIKeyError struct {
	Reason string
}

func (e *InvalidAPIKeyError) Error() string {
	if e.Reason == "" {
		return "invalid api key"
	}
	return fmt.Sprintf("invalid api key: %s", e.Reason)
}

// PolicyDeniedError is returned when a lifecycle state does not grant a
// requested capability. It carries enough detail for the caller to know
// why access was denied and what would restore it.
type PolicyDeniedError struct {
	Capability Capability
	State      Status
}

func (e *PolicyDeniedError) Error() string {
	switch {
	case e.Capability == CapWrite && e.State == StatusReadOnly:
		return "write denied: account is in read-only mode; renew your subscription to restore write access"
	case e.Capability == CapWrite && e.State == StatusExpired:
		return "write denied: subscription expired; renew to restore write access"
	default:
		return fmt.Sprintf("%s denied in state %q", e.Capability, e.State)
	}
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}
