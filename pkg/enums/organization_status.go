package enums

import "fmt"

// OrganizationStatus is the local billing state of an organization. The empty
// value means the organization has not entered billing yet.
type OrganizationStatus string

const (
	OrganizationStatusTrialing  OrganizationStatus = "trialing"
	OrganizationStatusActive    OrganizationStatus = "active"
	OrganizationStatusPastDue   OrganizationStatus = "past_due"
	OrganizationStatusCanceled  OrganizationStatus = "canceled"
	OrganizationStatusUnpaid    OrganizationStatus = "unpaid"
	OrganizationStatusSuspended OrganizationStatus = "suspended"
)

var validOrganizationStatuses = []OrganizationStatus{
	OrganizationStatusTrialing,
	OrganizationStatusActive,
	OrganizationStatusPastDue,
	OrganizationStatusCanceled,
	OrganizationStatusUnpaid,
	OrganizationStatusSuspended,
}

// String implements fmt.Stringer.
func (s OrganizationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s OrganizationStatus) IsValid() bool {
	for _, candidate := range validOrganizationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrganizationStatus converts raw input into an OrganizationStatus.
func ParseOrganizationStatus(value string) (OrganizationStatus, error) {
	for _, candidate := range validOrganizationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid organization status %q", value)
}
