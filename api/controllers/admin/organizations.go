package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/proppilot-backend/api/middleware"
	"github.com/angelmondragon/proppilot-backend/api/responses"
	"github.com/angelmondragon/proppilot-backend/api/validators"
	adminsvc "github.com/angelmondragon/proppilot-backend/internal/admin"
	"github.com/angelmondragon/proppilot-backend/internal/graceperiod"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/pagination"
)

// Service is the operator surface consumed by the admin controllers.
type Service interface {
	Approve(ctx context.Context, input adminsvc.ApproveInput) (*models.Organization, error)
	Reject(ctx context.Context, input adminsvc.RejectInput) (*models.Organization, error)
	SetGracePeriod(ctx context.Context, orgID uuid.UUID, days int) (*models.Organization, error)
	RetryPayment(ctx context.Context, orgID uuid.UUID) (*models.Organization, *stripe.Invoice, error)
	OverrideSuspension(ctx context.Context, orgID uuid.UUID, target enums.OrganizationStatus) (*models.Organization, error)
	RunGraceCheck(ctx context.Context) (graceperiod.Summary, error)
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	ListOrganizations(ctx context.Context, query organizations.ListQuery) ([]models.Organization, string, error)
	ListVerificationLogs(ctx context.Context, orgID uuid.UUID) ([]models.BusinessVerificationLog, error)
}

type approveRequest struct {
	PlanTier string  `json:"plan_tier" validate:"required,plan_tier"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type gracePeriodRequest struct {
	GracePeriodDays *int `json:"grace_period_days" validate:"required,min=0,max=90"`
}

type overrideRequest struct {
	Status string `json:"status" validate:"required,oneof=active past_due trialing"`
}

type organizationEnvelope struct {
	Message      string               `json:"message"`
	Organization *models.Organization `json:"organization"`
}

type invoiceSummary struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
}

type retryEnvelope struct {
	Message      string               `json:"message"`
	Organization *models.Organization `json:"organization"`
	Invoice      *invoiceSummary      `json:"invoice,omitempty"`
}

type organizationListResponse struct {
	Organizations []models.Organization `json:"organizations"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

func unavailable(ctx context.Context, w http.ResponseWriter, svc Service, logg *logger.Logger) bool {
	if svc != nil {
		return false
	}
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
	return true
}

func organizationID(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUID(chi.URLParam(r, "id"), "id")
}

// ApproveOrganization records an approval and starts the trial subscription.
func ApproveOrganization(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req approveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, err := svc.Approve(ctx, adminsvc.ApproveInput{
			OrganizationID: orgID,
			ReviewerID:     middleware.UserIDFromContext(ctx),
			PlanTier:       enums.PlanTier(req.PlanTier),
			Notes:          req.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, organizationEnvelope{Message: "organization approved and trial started", Organization: org})
	}
}

func RejectOrganization(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, err := svc.Reject(ctx, adminsvc.RejectInput{
			OrganizationID: orgID,
			ReviewerID:     middleware.UserIDFromContext(ctx),
			Reason:         validators.SanitizeString(req.Reason, 2000),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, organizationEnvelope{Message: "organization rejected", Organization: org})
	}
}

func SetGracePeriod(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req gracePeriodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, err := svc.SetGracePeriod(ctx, orgID, *req.GracePeriodDays)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, organizationEnvelope{Message: "grace period updated", Organization: org})
	}
}

// RetryPayment pays the latest open invoice for the organization.
func RetryPayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, invoice, err := svc.RetryPayment(ctx, orgID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := retryEnvelope{Message: "payment retry submitted", Organization: org}
		if invoice != nil {
			resp.Invoice = &invoiceSummary{
				ID:         invoice.ID,
				Status:     string(invoice.Status),
				AmountPaid: invoice.AmountPaid,
				Currency:   string(invoice.Currency),
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

func OverrideSuspension(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req overrideRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, err := svc.OverrideSuspension(ctx, orgID, enums.OrganizationStatus(req.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, organizationEnvelope{Message: "suspension overridden", Organization: org})
	}
}

// RunGraceCheck triggers the grace-period sweeper on demand.
func RunGraceCheck(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		summary, err := svc.RunGraceCheck(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "grace period check complete",
			"summary": summary,
		})
	}
}

func GetOrganization(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		org, err := svc.GetOrganization(ctx, orgID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, organizationEnvelope{Message: "ok", Organization: org})
	}
}

// ListOrganizations pages organizations, optionally filtered by status and
// verification_status.
func ListOrganizations(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query := organizations.ListQuery{Limit: limit}

		q := r.URL.Query()
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParseOrganizationStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			query.Status = &status
		}
		if raw := strings.TrimSpace(q.Get("verification_status")); raw != "" {
			vs, err := enums.ParseVerificationStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification_status"))
				return
			}
			query.VerificationStatus = &vs
		}
		if raw := strings.TrimSpace(q.Get("cursor")); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			query.Cursor = cursor
		}

		orgs, next, err := svc.ListOrganizations(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if orgs == nil {
			orgs = []models.Organization{}
		}
		responses.WriteSuccess(w, organizationListResponse{Organizations: orgs, NextCursor: next})
	}
}

func ListVerificationLogs(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if unavailable(ctx, w, svc, logg) {
			return
		}
		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logs, err := svc.ListVerificationLogs(ctx, orgID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logs == nil {
			logs = []models.BusinessVerificationLog{}
		}
		responses.WriteSuccess(w, map[string]any{"logs": logs})
	}
}
