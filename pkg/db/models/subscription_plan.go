package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// SubscriptionPlan captures the local catalog entry for a plan tier.
type SubscriptionPlan struct {
	Tier          enums.PlanTier        `gorm:"column:tier;primaryKey" json:"tier"`
	Name          string                `gorm:"column:name;not null" json:"name"`
	PriceAmount   decimal.Decimal       `gorm:"column:price_amount;type:numeric(12,2);not null" json:"price_amount"`
	CurrencyCode  string                `gorm:"column:currency_code;not null" json:"currency_code"`
	Interval      enums.BillingInterval `gorm:"column:interval;not null" json:"interval"`
	TrialDays     int                   `gorm:"column:trial_days;not null;default:0" json:"trial_days"`
	Features      pq.StringArray        `gorm:"column:features;type:text[]" json:"features"`
	StripePriceID *string               `gorm:"column:stripe_price_id" json:"-"`
	Active        bool                  `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// LookupKey is the Stripe price lookup key for the plan.
func (p SubscriptionPlan) LookupKey() string {
	return "proppilot_" + p.Tier.String() + "_" + p.Interval.String()
}

// UnitAmountCents converts the decimal price into Stripe's minor units.
func (p SubscriptionPlan) UnitAmountCents() int64 {
	return p.PriceAmount.Shift(2).Round(0).IntPart()
}
