package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountingConnection stores the sealed OAuth tokens of an organization's accounting tool.
type AccountingConnection struct {
	OrganizationID  uuid.UUID  `gorm:"column:organization_id;type:uuid;primaryKey"`
	Provider        string     `gorm:"column:provider;not null"`
	RealmID         string     `gorm:"column:realm_id"`
	AccessTokenEnc  []byte     `gorm:"column:access_token_enc;not null"`
	RefreshTokenEnc []byte     `gorm:"column:refresh_token_enc"`
	ExpiresAt       *time.Time `gorm:"column:expires_at"`
	ConnectedAt     time.Time  `gorm:"column:connected_at;not null"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
