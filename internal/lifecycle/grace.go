package lifecycle

import (
	"math"
	"time"
)

// DefaultGracePeriodDays applies when an organization has no override.
const DefaultGracePeriodDays = 14

// MaxGracePeriodDays bounds the admin override.
const MaxGracePeriodDays = 90

// EffectiveGraceDays resolves a nullable override. Zero is a real value.
func EffectiveGraceDays(override *int) int {
	if override == nil {
		return DefaultGracePeriodDays
	}
	if *override < 0 {
		return 0
	}
	return *override
}

// GracePeriodEnd is the instant service stops after the first failed payment.
func GracePeriodEnd(paymentFailedAt time.Time, graceDays int) time.Time {
	return paymentFailedAt.AddDate(0, 0, graceDays)
}

// IsGraceExpired reports whether now is strictly past the grace period end.
// A nil failure timestamp never expires.
func IsGraceExpired(paymentFailedAt *time.Time, graceDays int, now time.Time) bool {
	if paymentFailedAt == nil {
		return false
	}
	return now.After(GracePeriodEnd(*paymentFailedAt, graceDays))
}

// TrialDaysRemaining rounds the time left until trialEnd up to whole days.
func TrialDaysRemaining(trialEnd, now time.Time) int {
	remaining := trialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// ResolveGraceDays applies the organization override, falling back to the
// configured default. A configured zero means no grace; only a negative
// default falls back to DefaultGracePeriodDays.
func ResolveGraceDays(override *int, fallback int) int {
	if override != nil {
		return EffectiveGraceDays(override)
	}
	if fallback < 0 {
		return DefaultGracePeriodDays
	}
	return fallback
}
