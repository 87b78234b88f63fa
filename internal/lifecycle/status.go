// Package lifecycle holds the organization billing state machine and the
// grace-period arithmetic shared by the webhook reconciler and the sweeper.
package lifecycle

import (
	"fmt"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// PreBilling is the state of an organization that never had a subscription.
const PreBilling enums.OrganizationStatus = ""

var allowedTransitions = map[enums.OrganizationStatus][]enums.OrganizationStatus{
	PreBilling: {
		enums.OrganizationStatusTrialing,
		enums.OrganizationStatusActive,
		enums.OrganizationStatusCanceled,
	},
	enums.OrganizationStatusTrialing: {
		enums.OrganizationStatusActive,
		enums.OrganizationStatusPastDue,
		enums.OrganizationStatusSuspended,
		enums.OrganizationStatusCanceled,
	},
	enums.OrganizationStatusActive: {
		enums.OrganizationStatusPastDue,
		enums.OrganizationStatusSuspended,
		enums.OrganizationStatusCanceled,
		enums.OrganizationStatusTrialing,
	},
	enums.OrganizationStatusPastDue: {
		enums.OrganizationStatusActive,
		enums.OrganizationStatusSuspended,
		enums.OrganizationStatusCanceled,
	},
	enums.OrganizationStatusUnpaid: {
		enums.OrganizationStatusActive,
		enums.OrganizationStatusSuspended,
		enums.OrganizationStatusCanceled,
		enums.OrganizationStatusPastDue,
	},
	// Billing events only lift a suspension by paying or end it by canceling.
	enums.OrganizationStatusSuspended: {
		enums.OrganizationStatusActive,
		enums.OrganizationStatusCanceled,
	},
	enums.OrganizationStatusCanceled: {
		enums.OrganizationStatusTrialing,
		enums.OrganizationStatusActive,
	},
}

// CanTransition reports whether an organization may move from one status to
// another. Replays of the current status are always allowed.
func CanTransition(from, to enums.OrganizationStatus) bool {
	if !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From enums.OrganizationStatus
	To   enums.OrganizationStatus
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "pre_billing"
	}
	return fmt.Sprintf("status transition %s -> %s not allowed", from, e.To)
}

// Transition validates the move and returns the target status.
func Transition(from, to enums.OrganizationStatus) (enums.OrganizationStatus, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}

// overrideTargets are the statuses an operator may move a suspended
// organization to. past_due and trialing are reachable from suspended only
// this way.
var overrideTargets = []enums.OrganizationStatus{
	enums.OrganizationStatusActive,
	enums.OrganizationStatusPastDue,
	enums.OrganizationStatusTrialing,
}

// IsOverrideTarget reports whether an operator may lift a suspension to status.
func IsOverrideTarget(status enums.OrganizationStatus) bool {
	for _, candidate := range overrideTargets {
		if candidate == status {
			return true
		}
	}
	return false
}

// Override validates an operator's move out of suspended.
func Override(from, to enums.OrganizationStatus) (enums.OrganizationStatus, error) {
	if from != enums.OrganizationStatusSuspended || !IsOverrideTarget(to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}

// MapStripeStatus maps a Stripe subscription status onto the local status.
// The boolean is false for remote statuses that carry no local change
// (incomplete, incomplete_expired, paused).
func MapStripeStatus(remote string) (enums.OrganizationStatus, bool) {
	switch remote {
	case "active":
		return enums.OrganizationStatusActive, true
	case "trialing":
		return enums.OrganizationStatusTrialing, true
	case "past_due":
		return enums.OrganizationStatusPastDue, true
	case "canceled":
		return enums.OrganizationStatusCanceled, true
	case "unpaid":
		return enums.OrganizationStatusSuspended, true
	default:
		return "", false
	}
}
