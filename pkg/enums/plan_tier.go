package enums

import (
	"fmt"
	"strings"
)

// PlanTier identifies an entry of the subscription plan catalog.
type PlanTier string

const (
	PlanTierStarter      PlanTier = "starter"
	PlanTierProfessional PlanTier = "professional"
	PlanTierEnterprise   PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierStarter,
	PlanTierProfessional,
	PlanTierEnterprise,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanTier converts raw input into a PlanTier. Input is case-insensitive.
func ParsePlanTier(value string) (PlanTier, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPlanTiers {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
