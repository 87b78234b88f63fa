package plans

import (
	"context"
	"errors"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
)

// Service exposes the plan catalog.
type Service interface {
	List(ctx context.Context) ([]models.SubscriptionPlan, error)
	Get(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error)
}

type service struct {
	repo Repository
}

// NewService wires the plan catalog.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]models.SubscriptionPlan, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error) {
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan tier").
			WithDetails(map[string]any{"plan_tier": tier})
	}
	plan, err := s.repo.FindByTier(ctx, tier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not available").
			WithDetails(map[string]any{"plan_tier": tier})
	}
	return plan, nil
}
