package plans

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.SubscriptionPlan{}))

	seed := []models.SubscriptionPlan{
		{Tier: enums.PlanTierStarter, Name: "Starter", PriceAmount: decimal.RequireFromString("49.00"), CurrencyCode: "usd", Interval: enums.BillingIntervalMonth, TrialDays: 14, Features: []string{"units_50"}, Active: true},
		{Tier: enums.PlanTierProfessional, Name: "Professional", PriceAmount: decimal.RequireFromString("149.00"), CurrencyCode: "usd", Interval: enums.BillingIntervalMonth, TrialDays: 14, Active: true},
		{Tier: enums.PlanTierEnterprise, Name: "Enterprise", PriceAmount: decimal.RequireFromString("499.00"), CurrencyCode: "usd", Interval: enums.BillingIntervalMonth, TrialDays: 30, Active: false},
	}
	require.NoError(t, conn.Create(&seed).Error)
	// GORM skips zero-value bools with a default tag on insert.
	require.NoError(t, conn.Model(&models.SubscriptionPlan{}).Where("tier = ?", enums.PlanTierEnterprise).Update("active", false).Error)
	return NewRepository(conn)
}

func TestListReturnsActivePlansByPrice(t *testing.T) {
	svc, err := NewService(newTestRepo(t))
	require.NoError(t, err)

	rows, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, enums.PlanTierStarter, rows[0].Tier)
	require.Equal(t, []string{"units_50"}, []string(rows[0].Features))
	require.Equal(t, int64(4900), rows[0].UnitAmountCents())
}

func TestGetValidatesTier(t *testing.T) {
	svc, err := NewService(newTestRepo(t))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "platinum")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Get(context.Background(), enums.PlanTierEnterprise)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), "inactive plan")

	plan, err := svc.Get(context.Background(), enums.PlanTierStarter)
	require.NoError(t, err)
	require.Equal(t, 14, plan.TrialDays)
	require.Equal(t, "proppilot_starter_month", plan.LookupKey())
}

func TestSetStripePriceID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetStripePriceID(ctx, enums.PlanTierProfessional, "price_pro"))
	plan, err := repo.FindByTier(ctx, enums.PlanTierProfessional)
	require.NoError(t, err)
	require.NotNil(t, plan.StripePriceID)
	require.Equal(t, "price_pro", *plan.StripePriceID)
}
