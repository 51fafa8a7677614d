package domain

import "time"

// Status represents the subscription lifecycle state of a tenant.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusActive   Status = "active"
	StatusGrace    Status = "grace"
	StatusReadOnly Status = "read_only"
	StatusExpired  Status = "expired"
)

// Lifecycle windows. A new tenant gets a 14-day trial; once a billable
// window lapses the tenant has a 3-day grace period, then goes read-only,
// and its business data is scheduled for deletion 30 days after that.
const (
	TrialWindow     = 14 * 24 * time.Hour
	GraceWindow     = 3 * 24 * time.Hour
	RetentionWindow = 30 * 24 * time.Hour
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventTrialLapsed        Event = "trial_lapsed"
	EventSubscriptionLapsed Event = "subscription_lapsed"
	EventGraceLapsed        Event = "grace_lapsed"
	EventRenew              Event = "renew"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the tenant lifecycle.
// The lapse events are time-driven and applied by the lifecycle engine;
// renew is the only externally-driven transition and is valid from every
// state, including trial (an early upgrade).
var Transitions = []Transition{
	{Event: EventTrialLapsed, Src: StatusTrial, Dst: StatusGrace},
	{Event: EventSubscriptionLapsed, Src: StatusActive, Dst: StatusGrace},
	{Event: EventGraceLapsed, Src: StatusGrace, Dst: StatusReadOnly},
	{Event: EventRenew, Src: StatusTrial, Dst: StatusActive},
	{Event: EventRenew, Src: StatusActive, Dst: StatusActive},
	{Event: EventRenew, Src: StatusGrace, Dst: StatusActive},
	{Event: EventRenew, Src: StatusReadOnly, Dst: StatusActive},
	{Event: EventRenew, Src: StatusExpired, Dst: StatusActive},
}

// TransitionEvent is emitted once per applied transition for downstream
// notification and audit consumers.
type TransitionEvent struct {
	TenantID string
	From     Status
	To       Status
	At       time.Time
}

// Tenant is the core domain entity: one company on the platform.
//
// The nullable timestamps are the minimum set needed to reconstruct the
// lifecycle state at any instant; only the lifecycle engine and the
// explicit renew action may write them. Version is the optimistic
// concurrency token guarding those writes.
type Tenant struct {
	ID   string
	Name string
	Slug string

	Status             Status
	TrialEndsAt        *time.Time
	SubscriptionEndsAt *time.Time
	GracePeriodEndsAt  *time.Time
	DataDeletionDate   *time.Time
	ReadOnly           bool

	// DeletionSignaledAt records that the deletion-due signal has been
	// emitted for the current expiry episode. Cleared on renew so a tenant
	// that re-expires is signaled again.
	DeletionSignaledAt *time.Time

	APIKey       *string
	CustomDomain *string

	// Active is the administrative kill-switch, independent of billing.
	Active bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates a tenant in the initial trial state with the trial
// window starting at now.
func NewTenant(id, name, slug string, now time.Time) Tenant {
	now = now.UTC()
	trialEnds := now.Add(TrialWindow)
	return Tenant{
		ID:          id,
		Name:        name,
		Slug:        slug,
		Status:      StatusTrial,
		TrialEndsAt: &trialEnds,
		Active:      true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
