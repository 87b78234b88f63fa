package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// Organization is the billable tenant. Status is nil until billing starts.
type Organization struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name                 string                    `gorm:"column:name;not null" json:"name"`
	ContactName          string                    `gorm:"column:contact_name;not null" json:"contact_name"`
	Email                string                    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Phone                *string                   `gorm:"column:phone" json:"phone,omitempty"`
	Address              string                    `gorm:"column:address;not null" json:"address"`
	LicenseNumber        *string                   `gorm:"column:license_number" json:"license_number,omitempty"`
	TaxID                *string                   `gorm:"column:tax_id" json:"tax_id,omitempty"`
	VerificationStatus   enums.VerificationStatus  `gorm:"column:verification_status;type:verification_status;not null;default:'pending'" json:"verification_status"`
	Status               *enums.OrganizationStatus `gorm:"column:status;type:organization_status" json:"status"`
	PlanTier             *enums.PlanTier           `gorm:"column:plan_tier" json:"plan_tier,omitempty"`
	StripeCustomerID     *string                   `gorm:"column:stripe_customer_id;uniqueIndex" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string                   `gorm:"column:stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripePriceID        *string                   `gorm:"column:stripe_price_id" json:"stripe_price_id,omitempty"`
	TrialEndsAt          *time.Time                `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`
	GracePeriodDays      *int                      `gorm:"column:grace_period_days" json:"grace_period_days,omitempty"`
	PaymentFailedAt      *time.Time                `gorm:"column:payment_failed_at" json:"payment_failed_at,omitempty"`
	PaymentRetryCount    int                       `gorm:"column:payment_retry_count;not null;default:0" json:"payment_retry_count"`
	FraudScore           int                       `gorm:"column:fraud_score;not null;default:0" json:"fraud_score"`
	RiskScore            int                       `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the primary key when the caller did not.
func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// CurrentStatus returns the billing status, or "" before billing starts.
func (o *Organization) CurrentStatus() enums.OrganizationStatus {
	if o == nil || o.Status == nil {
		return ""
	}
	return *o.Status
}

// HasLiveSubscription reports whether a non-canceled subscription is attached.
func (o *Organization) HasLiveSubscription() bool {
	if o == nil || o.StripeSubscriptionID == nil || *o.StripeSubscriptionID == "" {
		return false
	}
	return o.CurrentStatus() != enums.OrganizationStatusCanceled
}
