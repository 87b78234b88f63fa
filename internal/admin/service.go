// Package admin implements operator overrides over organization verification
// and billing state.
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/proppilot-backend/internal/graceperiod"
	"github.com/angelmondragon/proppilot-backend/internal/lifecycle"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type planCatalog interface {
	Get(ctx context.Context, tier enums.PlanTier) (*models.SubscriptionPlan, error)
}

type activator interface {
	Activate(ctx context.Context, orgID uuid.UUID, tier enums.PlanTier) (*models.Organization, error)
}

type invoiceRetrier interface {
	RetryLatestInvoice(ctx context.Context, customerID string) (*stripe.Invoice, error)
}

type graceSweeper interface {
	Run(ctx context.Context) (graceperiod.Summary, error)
}

type verificationNotifier interface {
	Approved(ctx context.Context, org *models.Organization) error
	Rejected(ctx context.Context, org *models.Organization, reason string) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

// ServiceParams groups the admin service dependencies.
type ServiceParams struct {
	DB            txRunner
	Organizations organizations.Repository
	Plans         planCatalog
	Activation    activator
	Billing       invoiceRetrier
	Sweeper       graceSweeper
	Notifier      verificationNotifier
	Metrics       transitionRecorder
	Logger        *logger.Logger
}

type Service struct {
	tx         txRunner
	orgs       organizations.Repository
	plans      planCatalog
	activation activator
	billing    invoiceRetrier
	sweeper    graceSweeper
	notifier   verificationNotifier
	metrics    transitionRecorder
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	case params.Organizations == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organization repo required")
	case params.Plans == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	case params.Activation == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activation service required")
	case params.Billing == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service required")
	case params.Sweeper == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "grace sweeper required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		tx:         params.DB,
		orgs:       params.Organizations,
		plans:      params.Plans,
		activation: params.Activation,
		billing:    params.Billing,
		sweeper:    params.Sweeper,
		notifier:   params.Notifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// ApproveInput carries a manual approval.
type ApproveInput struct {
	OrganizationID uuid.UUID
	ReviewerID     string
	PlanTier       enums.PlanTier
	Notes          *string
}

// Approve records the manual approval, then starts the trial subscription.
// When billing fails after the approval was written the error carries
// CodeBillingSetup so the operator knows a retry is safe.
func (s *Service) Approve(ctx context.Context, input ApproveInput) (*models.Organization, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"organization_id": input.OrganizationID.String(),
		"reviewer_id":     input.ReviewerID,
	})
	if _, err := s.plans.Get(ctx, input.PlanTier); err != nil {
		return nil, err
	}

	org, err := s.load(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.HasLiveSubscription() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "organization already has a subscription")
	}

	if err := s.recordDecision(ctx, org, enums.VerificationStatusApproved, input.ReviewerID, input.Notes); err != nil {
		return nil, err
	}

	activated, err := s.activation.Activate(ctx, org.ID, input.PlanTier)
	if err != nil {
		s.logg.Error(ctx, "billing setup failed after approval", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeBillingSetup, err, "organization approved but billing setup failed").
			WithDetails(map[string]any{
				"step":                "billing",
				"organization_id":     org.ID.String(),
				"verification_status": enums.VerificationStatusApproved,
				"provider_error":      pkgerrors.IsCode(err, pkgerrors.CodeProvider),
			})
	}

	s.notify(ctx, "approval", func() error { return s.notifier.Approved(ctx, activated) })
	s.logg.Info(ctx, "organization approved")
	return activated, nil
}

// RejectInput carries a manual rejection.
type RejectInput struct {
	OrganizationID uuid.UUID
	ReviewerID     string
	Reason         string
}

func (s *Service) Reject(ctx context.Context, input RejectInput) (*models.Organization, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"organization_id": input.OrganizationID.String(),
		"reviewer_id":     input.ReviewerID,
	})
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	org, err := s.load(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.recordDecision(ctx, org, enums.VerificationStatusRejected, input.ReviewerID, &reason); err != nil {
		return nil, err
	}

	s.notify(ctx, "rejection", func() error { return s.notifier.Rejected(ctx, org, reason) })
	s.logg.Info(ctx, "organization rejected")
	return org, nil
}

func (s *Service) recordDecision(ctx context.Context, org *models.Organization, decision enums.VerificationStatus, reviewerID string, notes *string) error {
	var reviewer *string
	if reviewerID != "" {
		reviewer = &reviewerID
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orgs.WithTx(tx)
		org.VerificationStatus = decision
		if err := repo.UpdateOrganization(ctx, org); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update verification status")
		}
		entry := &models.BusinessVerificationLog{
			OrganizationID: org.ID,
			Source:         enums.VerificationSourceManual,
			Decision:       decision,
			FraudScore:     org.FraudScore,
			RiskScore:      org.RiskScore,
			Flags:          []string{},
			ReviewerID:     reviewer,
			Notes:          notes,
		}
		if err := repo.CreateBusinessVerificationLog(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification log")
		}
		return nil
	})
}

// SetGracePeriod stores a per-organization grace override in days.
func (s *Service) SetGracePeriod(ctx context.Context, orgID uuid.UUID, days int) (*models.Organization, error) {
	if days < 0 || days > lifecycle.MaxGracePeriodDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grace_period_days must be between 0 and 90").
			WithDetails(map[string]any{"grace_period_days": days})
	}
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	org.GracePeriodDays = &days
	if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update grace period")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"organization_id":   orgID.String(),
		"grace_period_days": days,
	}), "grace period updated")
	return org, nil
}

// RetryPayment pays the latest open invoice. The resulting status change
// arrives through the invoice webhooks.
func (s *Service) RetryPayment(ctx context.Context, orgID uuid.UUID) (*models.Organization, *stripe.Invoice, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization has no billing customer")
	}
	inv, err := s.billing.RetryLatestInvoice(ctx, *org.StripeCustomerID)
	if err != nil {
		return nil, nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"organization_id": orgID.String(),
		"invoice_id":      inv.ID,
		"invoice_status":  inv.Status,
	}), "invoice payment retried")
	return org, inv, nil
}

// OverrideSuspension lifts a suspension. Only moving to active clears the
// dunning state.
func (s *Service) OverrideSuspension(ctx context.Context, orgID uuid.UUID, target enums.OrganizationStatus) (*models.Organization, error) {
	if !lifecycle.IsOverrideTarget(target) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be one of active, past_due, trialing").
			WithDetails(map[string]any{"status": target})
	}
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	from := org.CurrentStatus()
	if from != enums.OrganizationStatusSuspended {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, &lifecycle.TransitionError{From: from, To: target}, "organization is not suspended").
			WithDetails(map[string]any{"from": from, "to": target})
	}
	next, err := lifecycle.Override(from, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "status transition not allowed")
	}

	org.Status = &next
	if next == enums.OrganizationStatusActive {
		org.PaymentFailedAt = nil
		org.PaymentRetryCount = 0
	}
	if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update organization status")
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(from), string(next))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"organization_id": orgID.String(),
		"from_status":     from,
		"to_status":       next,
	}), "suspension overridden")
	return org, nil
}

// RunGraceCheck runs the sweeper on demand. Row failures are logged and
// reported through Summary.Failed.
func (s *Service) RunGraceCheck(ctx context.Context) (graceperiod.Summary, error) {
	started := time.Now()
	summary, err := s.sweeper.Run(ctx)
	if err != nil {
		var typed *pkgerrors.Error
		if errors.As(err, &typed) {
			return summary, err
		}
		s.logg.Error(ctx, "grace check finished with row failures", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds()), "manual grace check complete")
	return summary, nil
}

func (s *Service) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return s.load(ctx, orgID)
}

// ListOrganizations pages organizations newest first.
func (s *Service) ListOrganizations(ctx context.Context, query organizations.ListQuery) ([]models.Organization, string, error) {
	orgs, next, err := s.orgs.ListOrganizations(ctx, query)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list organizations")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return orgs, cursor, nil
}

func (s *Service) ListVerificationLogs(ctx context.Context, orgID uuid.UUID) ([]models.BusinessVerificationLog, error) {
	if _, err := s.load(ctx, orgID); err != nil {
		return nil, err
	}
	logs, err := s.orgs.ListBusinessVerificationLogs(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verification logs")
	}
	return logs, nil
}

func (s *Service) load(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, organizations.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	return org, nil
}

func (s *Service) notify(ctx context.Context, kind string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"email": kind, "error": err.Error()}), "notification failed")
	}
}
