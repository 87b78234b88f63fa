package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// BusinessVerificationLog is an append-only audit row for a verification decision.
type BusinessVerificationLog struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID                `gorm:"column:organization_id;type:uuid;not null;index" json:"organization_id"`
	Source         enums.VerificationSource `gorm:"column:source;not null" json:"source"`
	Decision       enums.VerificationStatus `gorm:"column:decision;type:verification_status;not null" json:"decision"`
	FraudScore     int                      `gorm:"column:fraud_score;not null;default:0" json:"fraud_score"`
	RiskScore      int                      `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	Flags          pq.StringArray           `gorm:"column:flags;type:text[]" json:"flags"`
	ReviewerID     *string                  `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	Notes          *string                  `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (l *BusinessVerificationLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
