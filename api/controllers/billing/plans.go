package billing

import (
	"context"
	"net/http"

	"github.com/angelmondragon/proppilot-backend/api/responses"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

// PlanCatalog describes the plan methods used by the HTTP controllers.
type PlanCatalog interface {
	List(ctx context.Context) ([]models.SubscriptionPlan, error)
}

type planResponse struct {
	Tier             string   `json:"tier"`
	Name             string   `json:"name"`
	Interval         string   `json:"interval"`
	PriceAmount      string   `json:"price_amount"`
	PriceAmountCents int64    `json:"price_amount_cents"`
	CurrencyCode     string   `json:"currency_code"`
	TrialDays        int      `json:"trial_days"`
	Features         []string `json:"features"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

// PlansList returns the active plan catalog.
func PlansList(svc PlanCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog unavailable"))
			return
		}

		plans, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(plans)})
	}
}

func plansToResponse(plans []models.SubscriptionPlan) []planResponse {
	result := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		result = append(result, planToResponse(plan))
	}
	return result
}

func planToResponse(plan models.SubscriptionPlan) planResponse {
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)

	return planResponse{
		Tier:             plan.Tier.String(),
		Name:             plan.Name,
		Interval:         plan.Interval.String(),
		PriceAmount:      plan.PriceAmount.StringFixed(2),
		PriceAmountCents: plan.UnitAmountCents(),
		CurrencyCode:     plan.CurrencyCode,
		TrialDays:        plan.TrialDays,
		Features:         features,
	}
}
