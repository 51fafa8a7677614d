package domain

import "time"

// EvaluateState maps a tenant's stored timestamps and a point in time to
// the canonical lifecycle state. It is a total, pure function: both the
// request path and the periodic sweeper derive state from it, so a tenant
// whose stored Status is stale between sweeps is still evaluated
// correctly at request time.
//
// Rules are checked in order, first match wins:
//  1. trial while the trial window is open
//  2. active while the subscription window is open
//  3. grace while the grace window is open
//  4. read_only once the grace window has closed
//  5. expired when no recognizable window exists
func EvaluateState(t Tenant, now time.Time) Status {
	if t.TrialEndsAt != nil && now.Before(*t.TrialEndsAt) {
		return StatusTrial
	}
	if t.SubscriptionEndsAt != nil && now.Before(*t.SubscriptionEndsAt) {
		return StatusActive
	}
	if t.GracePeriodEndsAt != nil {
		if now.Before(*t.GracePeriodEndsAt) {
			return StatusGrace
		}
		return StatusReadOnly
	}
	return StatusExpired
}

// ExpiryWarningThresholds are the days-remaining marks at which the sweep
// annotates transition traffic with an upcoming-expiry warning, matching
// the product's alert schedule.
var ExpiryWarningThresholds = []int{14, 7, 3, 1}

// UpcomingExpiry returns the number of whole days until the tenant's
// current billable window closes, if that number sits on a warning
// threshold. The second return is false when no warning is due.
func UpcomingExpiry(t Tenant, now time.Time) (int, bool) {
	var ends *time.Time
	switch EvaluateState(t, now) {
	case StatusTrial:
		ends = t.TrialEndsAt
	case StatusActive:
		ends = t.SubscriptionEndsAt
	default:
		return 0, false
	}
	if ends == nil {
		return 0, false
	}

	days := int(ends.Sub(now).Hours() / 24)
	for _, threshold := range ExpiryWarningThresholds {
		if days == threshold {
			return days, true
		}
	}
	return 0, false
}
