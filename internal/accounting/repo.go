package accounting

import (
	"context"
	"errors"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotConnected is returned when an organization has no stored connection.
var ErrNotConnected = errors.New("accounting connection not found")

// Repository persists accounting connections.
type Repository interface {
	Upsert(ctx context.Context, conn *models.AccountingConnection) error
	Get(ctx context.Context, orgID uuid.UUID) (*models.AccountingConnection, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, conn *models.AccountingConnection) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider", "realm_id", "access_token_enc", "refresh_token_enc", "expires_at", "connected_at", "updated_at"}),
	}).Create(conn).Error
}

func (r *repository) Get(ctx context.Context, orgID uuid.UUID) (*models.AccountingConnection, error) {
	var conn models.AccountingConnection
	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
