package migrate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// The goose files rely on Postgres enums and partial indexes, so SQLite
// databases get their schema from the GORM models instead.
var sqliteModels = []any{
	&models.Organization{},
	&models.BusinessVerificationLog{},
	&models.SubscriptionPlan{},
	&models.AccountingConnection{},
}

// DefaultPlans mirrors the catalog seeded by the subscription_plans migration.
func DefaultPlans() []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Tier:         enums.PlanTierStarter,
			Name:         "Starter",
			PriceAmount:  decimal.RequireFromString("49.00"),
			CurrencyCode: "usd",
			Interval:     enums.BillingIntervalMonth,
			TrialDays:    14,
			Features:     []string{"units_50", "owner_portal"},
			Active:       true,
		},
		{
			Tier:         enums.PlanTierProfessional,
			Name:         "Professional",
			PriceAmount:  decimal.RequireFromString("149.00"),
			CurrencyCode: "usd",
			Interval:     enums.BillingIntervalMonth,
			TrialDays:    14,
			Features:     []string{"units_250", "owner_portal", "accounting_sync"},
			Active:       true,
		},
		{
			Tier:         enums.PlanTierEnterprise,
			Name:         "Enterprise",
			PriceAmount:  decimal.RequireFromString("499.00"),
			CurrencyCode: "usd",
			Interval:     enums.BillingIntervalMonth,
			TrialDays:    30,
			Features:     []string{"units_unlimited", "owner_portal", "accounting_sync", "priority_support"},
			Active:       true,
		},
	}
}

// AutoMigrateSQLite creates the tables from the models and seeds the plan catalog.
func AutoMigrateSQLite(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.WithContext(ctx).AutoMigrate(sqliteModels...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return SeedPlans(ctx, conn)
}

// SeedPlans inserts the default catalog, leaving existing tiers untouched.
func SeedPlans(ctx context.Context, conn *gorm.DB) error {
	plans := DefaultPlans()
	err := conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tier"}}, DoNothing: true}).
		Create(&plans).Error
	if err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}
