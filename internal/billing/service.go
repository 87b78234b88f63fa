package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/proppilot-backend/pkg/stripe"
	"github.com/stripe/stripe-go/v82"
)

type priceCache interface {
	SetStripePriceID(ctx context.Context, tier enums.PlanTier, priceID string) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Gateway  Gateway
	Plans    priceCache
	Currency string
	Logger   *logger.Logger
}

// Service wraps Stripe calls with the plan catalog and error mapping.
type Service struct {
	gateway  Gateway
	plans    priceCache
	currency string
	logg     *logger.Logger
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan cache is required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Service{
		gateway:  params.Gateway,
		plans:    params.Plans,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

// EnsureCustomer returns the organization's Stripe customer, creating one if absent.
// The caller persists the returned id.
func (s *Service) EnsureCustomer(ctx context.Context, org *models.Organization) (string, bool, error) {
	if org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		return *org.StripeCustomerID, false, nil
	}
	id, err := s.gateway.CreateCustomer(ctx, pkgstripe.CustomerInput{
		OrganizationID: org.ID.String(),
		Name:           org.Name,
		Email:          org.Email,
	})
	if err != nil {
		return "", false, providerError(err, "create customer")
	}
	return id, true, nil
}

// ResolvePriceID returns the Stripe price for the plan: the cached id, then a
// lookup-key match, then a newly created price. The result is cached on the plan.
func (s *Service) ResolvePriceID(ctx context.Context, plan *models.SubscriptionPlan) (string, error) {
	if plan.StripePriceID != nil && *plan.StripePriceID != "" {
		return *plan.StripePriceID, nil
	}

	if !plan.Interval.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "plan has no usable billing interval").
			WithDetails(map[string]any{"plan_tier": plan.Tier, "interval": plan.Interval})
	}
	key := plan.LookupKey()
	priceID, err := s.gateway.FindPriceIDByLookupKey(ctx, key)
	if err != nil {
		return "", providerError(err, "lookup price")
	}
	if priceID == "" {
		currency := strings.ToLower(plan.CurrencyCode)
		if currency == "" {
			currency = s.currency
		}
		priceID, err = s.gateway.CreatePrice(ctx, pkgstripe.PriceInput{
			LookupKey:   key,
			ProductName: "PropPilot " + plan.Name,
			UnitAmount:  plan.UnitAmountCents(),
			Currency:    currency,
			Interval:    plan.Interval.String(),
		})
		if err != nil {
			return "", providerError(err, "create price")
		}
	}

	if err := s.plans.SetStripePriceID(ctx, plan.Tier, priceID); err != nil {
		// The price exists remotely; the next call finds it by lookup key.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"plan_tier": plan.Tier, "price_id": priceID}), "failed to cache stripe price id")
		}
	}
	plan.StripePriceID = &priceID
	return priceID, nil
}

// StartTrial creates the subscription with the plan's trial length.
func (s *Service) StartTrial(ctx context.Context, org *models.Organization, customerID, priceID string, trialDays int) (*stripe.Subscription, error) {
	sub, err := s.gateway.CreateSubscription(ctx, pkgstripe.SubscriptionInput{
		OrganizationID: org.ID.String(),
		CustomerID:     customerID,
		PriceID:        priceID,
		TrialDays:      int64(trialDays),
	})
	if err != nil {
		return nil, providerError(err, "create subscription")
	}
	return sub, nil
}

// RetryLatestInvoice pays the newest open invoice of the customer.
func (s *Service) RetryLatestInvoice(ctx context.Context, customerID string) (*stripe.Invoice, error) {
	inv, err := s.gateway.LatestOpenInvoice(ctx, customerID)
	if err != nil {
		return nil, providerError(err, "list invoices")
	}
	if inv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open invoice to retry")
	}
	paid, err := s.gateway.PayInvoice(ctx, inv.ID)
	if err != nil {
		return nil, providerError(err, "pay invoice").WithDetails(map[string]any{
			"invoice_id":       inv.ID,
			"provider_message": providerMessage(err),
		})
	}
	return paid, nil
}

func providerError(err error, step string) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "stripe "+step+" failed").
		WithDetails(map[string]any{"step": step, "provider_message": providerMessage(err)})
}

func providerMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
