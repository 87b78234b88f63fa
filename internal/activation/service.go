// Package activation provisions the Stripe customer and trial subscription of
// an approved organization.
package activation

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/proppilot-backend/internal/lifecycle"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

type billingOps interface {
	EnsureCustomer(ctx context.Context, org *models.Organization) (string, bool, error)
	ResolvePriceID(ctx context.Context, plan *models.SubscriptionPlan) (string, error)
	StartTrial(ctx context.Context, org *models.Organization, customerID, priceID string, trialDays int) (*stripe.Subscription, error)
}

type planCatalog interface {
	Get(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error)
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

// ServiceParams groups dependencies for the activation service.
type ServiceParams struct {
	Organizations organizations.Repository
	Plans         planCatalog
	Billing       billingOps
	Metrics       transitionRecorder
	Logger        *logger.Logger
	Now           func() time.Time
}

// Service starts trial subscriptions.
type Service struct {
	orgs    organizations.Repository
	plans   planCatalog
	billing billingOps
	metrics transitionRecorder
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Organizations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organization repo required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orgs:    params.Organizations,
		plans:   params.Plans,
		billing: params.Billing,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Activate creates the customer (if needed), resolves the plan price, starts
// the trial subscription and records it on the organization. It is safe to
// call again after a failure: the customer and price are reused.
func (s *Service) Activate(ctx context.Context, orgID uuid.UUID, tier enums.PlanTier) (*models.Organization, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"organization_id": orgID.String(), "plan_tier": tier})

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.HasLiveSubscription() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "organization already has a subscription")
	}
	from := org.CurrentStatus()
	if !lifecycle.CanTransition(from, enums.OrganizationStatusTrialing) {
		return nil, transitionError(from, enums.OrganizationStatusTrialing)
	}

	plan, err := s.plans.Get(ctx, tier)
	if err != nil {
		return nil, err
	}

	customerID, created, err := s.billing.EnsureCustomer(ctx, org)
	if err != nil {
		return nil, err
	}
	if created {
		org.StripeCustomerID = &customerID
		if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe customer")
		}
		s.logg.Info(s.logg.WithField(ctx, "stripe_customer_id", customerID), "stripe customer created")
	}

	priceID, err := s.billing.ResolvePriceID(ctx, plan)
	if err != nil {
		return nil, err
	}

	sub, err := s.billing.StartTrial(ctx, org, customerID, priceID, plan.TrialDays)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	trialEnd := now.AddDate(0, 0, plan.TrialDays)
	if sub.TrialEnd > 0 {
		trialEnd = time.Unix(sub.TrialEnd, 0).UTC()
	}
	status := enums.OrganizationStatusTrialing
	planTier := plan.Tier
	org.StripeSubscriptionID = &sub.ID
	org.StripePriceID = &priceID
	org.TrialEndsAt = &trialEnd
	org.PlanTier = &planTier
	org.Status = &status

	if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription").
			WithDetails(map[string]any{"stripe_subscription_id": sub.ID})
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(from), string(status))
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"stripe_subscription_id": sub.ID,
		"trial_ends_at":          trialEnd,
	}), "trial subscription started")
	return org, nil
}

// StartSelfServiceTrial activates an organization on behalf of its owner.
// Only organizations that passed verification may start a trial.
func (s *Service) StartSelfServiceTrial(ctx context.Context, orgID uuid.UUID, tier enums.PlanTier) (*models.Organization, error) {
	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.VerificationStatus != enums.VerificationStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization verification is not approved")
	}
	return s.Activate(ctx, orgID, tier)
}

func (s *Service) loadOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, organizations.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	return org, nil
}

func transitionError(from, to enums.OrganizationStatus) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, &lifecycle.TransitionError{From: from, To: to}, "status transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}
