package enums

// BillingInterval is the recurring period of a plan price, spelled the way
// Stripe spells recurring intervals.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

func (b BillingInterval) String() string { return string(b) }

// IsValid reports whether Stripe accepts the interval for a plan price.
func (b BillingInterval) IsValid() bool {
	switch b {
	case BillingIntervalMonth, BillingIntervalYear:
		return true
	}
	return false
}
