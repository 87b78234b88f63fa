package registration

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/internal/risk"
	"github.com/angelmondragon/proppilot-backend/pkg/db"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"gorm.io/gorm"
)

// Request is the public registration payload.
type Request struct {
	BusinessName  string  `json:"business_name" validate:"required,min=2,max=200"`
	ContactName   string  `json:"contact_name" validate:"required,max=200"`
	Email         string  `json:"email" validate:"required,email"`
	Phone         *string `json:"phone,omitempty"`
	Address       string  `json:"address" validate:"required"`
	LicenseNumber *string `json:"license_number,omitempty"`
	TaxID         *string `json:"tax_id,omitempty"`
}

// Result is returned to the registrant.
type Result struct {
	Organization *models.Organization    `json:"organization"`
	Decision     enums.VerificationStatus `json:"decision"`
	FraudScore   int                      `json:"fraud_score"`
	RiskScore    int                      `json:"risk_score"`
	Flags        []string                 `json:"flags"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type evaluator interface {
	Evaluate(in risk.Input) risk.Evaluation
}

type rejectionNotifier interface {
	Rejected(ctx context.Context, org *models.Organization, reason string) error
}

// Service onboards organizations behind the fraud and risk gates.
type Service interface {
	Register(ctx context.Context, req Request) (*Result, error)
}

// ServiceParams packages the dependencies for the registration flow.
type ServiceParams struct {
	DB            txRunner
	Organizations organizations.Repository
	Scorer        evaluator
	Notifier      rejectionNotifier
	Logger        *logger.Logger
}

type service struct {
	tx       txRunner
	orgs     organizations.Repository
	scorer   evaluator
	notifier rejectionNotifier
	logg     *logger.Logger
}

var _ txRunner = (*db.Client)(nil)

// NewService builds a registration service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Organizations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organization repo required")
	}
	if params.Scorer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "risk scorer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		tx:       params.DB,
		orgs:     params.Organizations,
		scorer:   params.Scorer,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, req Request) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	eval := s.scorer.Evaluate(risk.Input{
		BusinessName:  req.BusinessName,
		Email:         email,
		Phone:         deref(req.Phone),
		Address:       req.Address,
		LicenseNumber: deref(req.LicenseNumber),
		TaxID:         deref(req.TaxID),
	})
	flags := eval.Flags()
	if flags == nil {
		flags = []string{}
	}

	org := &models.Organization{
		Name:               strings.TrimSpace(req.BusinessName),
		ContactName:        strings.TrimSpace(req.ContactName),
		Email:              email,
		Phone:              trimmed(req.Phone),
		Address:            strings.TrimSpace(req.Address),
		LicenseNumber:      trimmed(req.LicenseNumber),
		TaxID:              trimmed(req.TaxID),
		VerificationStatus: eval.Decision,
		FraudScore:         eval.Fraud.Score,
		RiskScore:          eval.Risk.Score,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orgs.WithTx(tx)

		if _, err := repo.GetOrganizationByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, organizations.ErrNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check organization email")
		}

		if err := repo.CreateOrganization(ctx, org); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create organization")
		}

		entry := &models.BusinessVerificationLog{
			OrganizationID: org.ID,
			Source:         enums.VerificationSourceAutomated,
			Decision:       eval.Decision,
			FraudScore:     eval.Fraud.Score,
			RiskScore:      eval.Risk.Score,
			Flags:          flags,
		}
		if err := repo.CreateBusinessVerificationLog(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification log")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"organization_id": org.ID.String(),
		"decision":        eval.Decision,
		"fraud_score":     eval.Fraud.Score,
		"risk_score":      eval.Risk.Score,
	})
	s.logg.Info(ctx, "organization registered")

	if !eval.Fraud.Passed && s.notifier != nil {
		if err := s.notifier.Rejected(ctx, org, "We could not verify your business contact details."); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rejection email failed")
		}
	}

	return &Result{
		Organization: org,
		Decision:     eval.Decision,
		FraudScore:   eval.Fraud.Score,
		RiskScore:    eval.Risk.Score,
		Flags:        flags,
	}, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
