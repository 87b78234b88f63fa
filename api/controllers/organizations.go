package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/proppilot-backend/api/middleware"
	"github.com/angelmondragon/proppilot-backend/api/responses"
	"github.com/angelmondragon/proppilot-backend/api/validators"
	"github.com/angelmondragon/proppilot-backend/internal/registration"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

// RegistrationService screens and stores new organizations.
type RegistrationService interface {
	Register(ctx context.Context, req registration.Request) (*registration.Result, error)
}

// TrialStarter starts a self-service trial.
type TrialStarter interface {
	StartSelfServiceTrial(ctx context.Context, orgID uuid.UUID, tier enums.PlanTier) (*models.Organization, error)
}

type startTrialRequest struct {
	PlanTier string `json:"plan_tier" validate:"required,plan_tier"`
}

// OrganizationRegister screens and creates a new organization.
func OrganizationRegister(svc RegistrationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}

		var req registration.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		req.BusinessName = validators.SanitizeString(req.BusinessName, 200)
		req.ContactName = validators.SanitizeString(req.ContactName, 200)
		req.Address = validators.SanitizeString(req.Address, 500)

		result, err := svc.Register(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrganizationStartTrial starts the trial subscription for the caller's organization.
func OrganizationStartTrial(svc TrialStarter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		orgID, err := validators.ParseUUID(middleware.OrganizationIDFromContext(ctx), "organization_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing"))
			return
		}

		var req startTrialRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		org, err := svc.StartSelfServiceTrial(ctx, orgID, enums.PlanTier(req.PlanTier))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message":      "trial started",
			"organization": org,
		})
	}
}
