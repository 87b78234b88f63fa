package enums

import "fmt"

// VerificationStatus tracks the business verification decision for an organization.
type VerificationStatus string

const (
	VerificationStatusPending      VerificationStatus = "pending"
	VerificationStatusApproved     VerificationStatus = "approved"
	VerificationStatusRejected     VerificationStatus = "rejected"
	VerificationStatusManualReview VerificationStatus = "manual_review"
)

var validVerificationStatuses = []VerificationStatus{
	VerificationStatusPending,
	VerificationStatusApproved,
	VerificationStatusRejected,
	VerificationStatusManualReview,
}

// String implements fmt.Stringer.
func (v VerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VerificationStatus) IsValid() bool {
	for _, candidate := range validVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationStatus converts raw input into a VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	for _, candidate := range validVerificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification status %q", value)
}

// VerificationSource records who produced a verification decision.
type VerificationSource string

const (
	VerificationSourceAutomated VerificationSource = "automated"
	VerificationSourceManual    VerificationSource = "manual"
)

// String implements fmt.Stringer.
func (v VerificationSource) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VerificationSource) IsValid() bool {
	return v == VerificationSourceAutomated || v == VerificationSourceManual
}
