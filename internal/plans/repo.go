package plans

import (
	"context"
	"errors"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the tier has no catalog row.
var ErrNotFound = errors.New("subscription plan not found")

// Repository reads the plan catalog.
type Repository interface {
	ListActive(ctx context.Context) ([]models.SubscriptionPlan, error)
	FindByTier(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error)
	SetStripePriceID(ctx context.Context, tier enums.PlanTier, priceID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var rows []models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_amount ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("tier = ?", tier).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// SetStripePriceID caches the resolved Stripe price on the catalog row.
func (r *repository) SetStripePriceID(ctx context.Context, tier enums.PlanTier, priceID string) error {
	return r.db.WithContext(ctx).
		Model(&models.SubscriptionPlan{}).
		Where("tier = ?", tier).
		Update("stripe_price_id", priceID).Error
}
