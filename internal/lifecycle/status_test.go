package lifecycle

import (
	"errors"
	"testing"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from enums.OrganizationStatus
		to   enums.OrganizationStatus
		want bool
	}{
		{name: "pre-billing to trialing", from: PreBilling, to: enums.OrganizationStatusTrialing, want: true},
		{name: "pre-billing to past_due", from: PreBilling, to: enums.OrganizationStatusPastDue, want: false},
		{name: "trialing to active", from: enums.OrganizationStatusTrialing, to: enums.OrganizationStatusActive, want: true},
		{name: "active to past_due", from: enums.OrganizationStatusActive, to: enums.OrganizationStatusPastDue, want: true},
		{name: "past_due to active", from: enums.OrganizationStatusPastDue, to: enums.OrganizationStatusActive, want: true},
		{name: "past_due to suspended", from: enums.OrganizationStatusPastDue, to: enums.OrganizationStatusSuspended, want: true},
		{name: "past_due to trialing", from: enums.OrganizationStatusPastDue, to: enums.OrganizationStatusTrialing, want: false},
		{name: "suspended to trialing", from: enums.OrganizationStatusSuspended, to: enums.OrganizationStatusTrialing, want: false},
		{name: "suspended to past_due", from: enums.OrganizationStatusSuspended, to: enums.OrganizationStatusPastDue, want: false},
		{name: "suspended to active", from: enums.OrganizationStatusSuspended, to: enums.OrganizationStatusActive, want: true},
		{name: "canceled to past_due", from: enums.OrganizationStatusCanceled, to: enums.OrganizationStatusPastDue, want: false},
		{name: "canceled to trialing", from: enums.OrganizationStatusCanceled, to: enums.OrganizationStatusTrialing, want: true},
		{name: "replay", from: enums.OrganizationStatusSuspended, to: enums.OrganizationStatusSuspended, want: true},
		{name: "unknown target", from: enums.OrganizationStatusActive, to: "paused", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestOverrideLeavesSuspendedOnly(t *testing.T) {
	for _, to := range []enums.OrganizationStatus{
		enums.OrganizationStatusActive,
		enums.OrganizationStatusPastDue,
		enums.OrganizationStatusTrialing,
	} {
		got, err := Override(enums.OrganizationStatusSuspended, to)
		if err != nil || got != to {
			t.Fatalf("Override(suspended, %s) = %s, %v", to, got, err)
		}
	}
	if _, err := Override(enums.OrganizationStatusSuspended, enums.OrganizationStatusCanceled); err == nil {
		t.Fatal("canceled is not an override target")
	}
	if _, err := Override(enums.OrganizationStatusPastDue, enums.OrganizationStatusActive); err == nil {
		t.Fatal("override requires a suspended organization")
	}
}

func TestCanceledReachableFromEveryState(t *testing.T) {
	for from := range allowedTransitions {
		if !CanTransition(from, enums.OrganizationStatusCanceled) {
			t.Fatalf("expected %q -> canceled to be allowed", from)
		}
	}
}

func TestTransitionReturnsTypedError(t *testing.T) {
	status, err := Transition(enums.OrganizationStatusCanceled, enums.OrganizationStatusSuspended)
	if err == nil {
		t.Fatal("expected error")
	}
	if status != enums.OrganizationStatusCanceled {
		t.Fatalf("expected status unchanged, got %q", status)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.To != enums.OrganizationStatusSuspended {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := Transition(PreBilling, enums.OrganizationStatusPastDue); err == nil || err.Error() != "status transition pre_billing -> past_due not allowed" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestMapStripeStatus(t *testing.T) {
	tests := map[string]struct {
		want enums.OrganizationStatus
		ok   bool
	}{
		"active":             {enums.OrganizationStatusActive, true},
		"trialing":           {enums.OrganizationStatusTrialing, true},
		"past_due":           {enums.OrganizationStatusPastDue, true},
		"canceled":           {enums.OrganizationStatusCanceled, true},
		"unpaid":             {enums.OrganizationStatusSuspended, true},
		"incomplete":         {"", false},
		"incomplete_expired": {"", false},
		"paused":             {"", false},
	}
	for remote, tt := range tests {
		got, ok := MapStripeStatus(remote)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("MapStripeStatus(%q) = (%q, %v), want (%q, %v)", remote, got, ok, tt.want, tt.ok)
		}
	}
}
