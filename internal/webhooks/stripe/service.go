package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/proppilot-backend/internal/lifecycle"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// Outcome describes what HandleEvent did with an event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lifecycleNotifier interface {
	TrialEnding(ctx context.Context, org *models.Organization, trialEnd time.Time, daysRemaining int) error
	PaymentFailed(ctx context.Context, org *models.Organization, nextAttempt, graceEnd time.Time) error
	Suspended(ctx context.Context, org *models.Organization) error
	PaymentSucceeded(ctx context.Context, org *models.Organization) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

type ServiceParams struct {
	Organizations     organizations.Repository
	TransactionRunner txRunner
	Notifier          lifecycleNotifier
	Metrics           transitionRecorder
	Logger            *logger.Logger
	DefaultGraceDays  int
	Now               func() time.Time
}

// Service reconciles organization billing state from Stripe events. It applies
// every event it is given; duplicate deliveries are filtered upstream by the
// IdempotencyGuard.
type Service struct {
	orgs      organizations.Repository
	txRunner  txRunner
	notifier  lifecycleNotifier
	metrics   transitionRecorder
	logg      *logger.Logger
	graceDays int
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Organizations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organization repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orgs:      params.Organizations,
		txRunner:  params.TransactionRunner,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		graceDays: params.DefaultGraceDays,
		now:       now,
	}, nil
}

// effect is what a handler wants done once its mutation is decided.
type effect struct {
	save   bool
	notify func(ctx context.Context, org *models.Organization) error
}

type mutation func(org *models.Organization, now time.Time) (effect, error)

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		var mutate mutation
		switch event.Type {
		case stripe.EventTypeCustomerSubscriptionUpdated:
			mutate = s.subscriptionUpdated(&sub)
		case stripe.EventTypeCustomerSubscriptionDeleted:
			mutate = s.subscriptionDeleted()
		default:
			mutate = s.trialWillEnd(&sub)
		}
		return s.apply(ctx, customerID(sub.Customer), mutate)
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice event")
		}
		mutate := s.paymentSucceeded()
		if event.Type == stripe.EventTypeInvoicePaymentFailed {
			mutate = s.paymentFailed(&inv)
		}
		return s.apply(ctx, customerID(inv.Customer), mutate)
	default:
		s.logg.Debug(ctx, "stripe event type ignored")
		return OutcomeIgnored, nil
	}
}

func (s *Service) apply(ctx context.Context, customer string, mutate mutation) (Outcome, error) {
	if customer == "" {
		s.logg.Warn(ctx, "stripe event has no customer")
		return OutcomeUnmatched, nil
	}
	ctx = s.logg.WithField(ctx, "stripe_customer_id", customer)

	var (
		org     *models.Organization
		from    enums.OrganizationStatus
		result  effect
		outcome = OutcomeProcessed
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orgs.WithTx(tx)
		found, err := repo.GetOrganizationByStripeCustomerID(ctx, customer)
		if err != nil {
			if errors.Is(err, organizations.ErrNotFound) {
				outcome = OutcomeUnmatched
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization by customer")
		}
		from = found.CurrentStatus()

		eff, err := mutate(found, s.now().UTC())
		if err != nil {
			var transitionErr *lifecycle.TransitionError
			if errors.As(err, &transitionErr) {
				outcome = OutcomeIgnored
				s.logg.Warn(s.logg.WithField(ctx, "organization_id", found.ID.String()), transitionErr.Error())
				return nil
			}
			return err
		}
		if eff.save {
			if err := repo.UpdateOrganization(ctx, found); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update organization")
			}
		}
		org = found
		result = eff
		return nil
	})
	if err != nil {
		return "", err
	}
	if outcome == OutcomeUnmatched {
		s.logg.Warn(ctx, "stripe customer not matched to an organization")
		return outcome, nil
	}
	if org == nil {
		return outcome, nil
	}

	ctx = s.logg.WithOrganizationID(ctx, org.ID.String())
	to := org.CurrentStatus()
	if s.metrics != nil && result.save {
		s.metrics.IncTransition(string(from), string(to))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from_status":         from,
		"to_status":           to,
		"payment_retry_count": org.PaymentRetryCount,
	}), "stripe event applied")

	if result.notify != nil && s.notifier != nil {
		if err := result.notify(ctx, org); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "lifecycle email failed")
		}
	}
	return outcome, nil
}

func (s *Service) subscriptionUpdated(sub *stripe.Subscription) mutation {
	return func(org *models.Organization, _ time.Time) (effect, error) {
		if target, ok := lifecycle.MapStripeStatus(string(sub.Status)); ok {
			if err := moveTo(org, target); err != nil {
				return effect{}, err
			}
		}
		if sub.ID != "" {
			id := sub.ID
			org.StripeSubscriptionID = &id
		}
		if price := priceID(sub); price != "" {
			org.StripePriceID = &price
		}
		if sub.TrialEnd > 0 {
			trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
			org.TrialEndsAt = &trialEnd
		}
		return effect{save: true}, nil
	}
}

func (s *Service) subscriptionDeleted() mutation {
	return func(org *models.Organization, _ time.Time) (effect, error) {
		if err := moveTo(org, enums.OrganizationStatusCanceled); err != nil {
			return effect{}, err
		}
		return effect{save: true}, nil
	}
}

func (s *Service) trialWillEnd(sub *stripe.Subscription) mutation {
	return func(org *models.Organization, now time.Time) (effect, error) {
		var trialEnd time.Time
		switch {
		case sub.TrialEnd > 0:
			trialEnd = time.Unix(sub.TrialEnd, 0).UTC()
		case org.TrialEndsAt != nil:
			trialEnd = *org.TrialEndsAt
		}
		days := 0
		if !trialEnd.IsZero() {
			days = lifecycle.TrialDaysRemaining(trialEnd, now)
		}
		return effect{notify: func(ctx context.Context, org *models.Organization) error {
			return s.notifier.TrialEnding(ctx, org, trialEnd, days)
		}}, nil
	}
}

func (s *Service) paymentSucceeded() mutation {
	return func(org *models.Organization, _ time.Time) (effect, error) {
		if err := moveTo(org, enums.OrganizationStatusActive); err != nil {
			return effect{}, err
		}
		org.PaymentFailedAt = nil
		org.PaymentRetryCount = 0
		return effect{save: true, notify: func(ctx context.Context, org *models.Organization) error {
			return s.notifier.PaymentSucceeded(ctx, org)
		}}, nil
	}
}

func (s *Service) paymentFailed(inv *stripe.Invoice) mutation {
	return func(org *models.Organization, now time.Time) (effect, error) {
		failedAt := now
		if org.PaymentFailedAt != nil {
			failedAt = *org.PaymentFailedAt
		}
		graceDays := lifecycle.ResolveGraceDays(org.GracePeriodDays, s.graceDays)
		graceEnd := lifecycle.GracePeriodEnd(failedAt, graceDays)

		target := enums.OrganizationStatusPastDue
		if lifecycle.IsGraceExpired(&failedAt, graceDays, now) {
			target = enums.OrganizationStatusSuspended
		}
		if err := moveTo(org, target); err != nil {
			return effect{}, err
		}
		org.PaymentFailedAt = &failedAt
		org.PaymentRetryCount++

		if target == enums.OrganizationStatusSuspended {
			return effect{save: true, notify: func(ctx context.Context, org *models.Organization) error {
				return s.notifier.Suspended(ctx, org)
			}}, nil
		}
		var nextAttempt time.Time
		if inv.NextPaymentAttempt > 0 {
			nextAttempt = time.Unix(inv.NextPaymentAttempt, 0).UTC()
		}
		return effect{save: true, notify: func(ctx context.Context, org *models.Organization) error {
			return s.notifier.PaymentFailed(ctx, org, nextAttempt, graceEnd)
		}}, nil
	}
}

func moveTo(org *models.Organization, target enums.OrganizationStatus) error {
	next, err := lifecycle.Transition(org.CurrentStatus(), target)
	if err != nil {
		return err
	}
	org.Status = &next
	return nil
}

func customerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func priceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}
