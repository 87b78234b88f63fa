package integrations

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/proppilot-backend/api/middleware"
	"github.com/angelmondragon/proppilot-backend/api/responses"
	"github.com/angelmondragon/proppilot-backend/api/validators"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

// AccountingService runs the accounting-tool OAuth handshake.
type AccountingService interface {
	Begin(ctx context.Context, orgID uuid.UUID) (string, error)
	Complete(ctx context.Context, state, code, realmID string) (*models.AccountingConnection, error)
	AccessToken(ctx context.Context, orgID uuid.UUID) (string, error)
}

type connectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

type connectionResponse struct {
	OrganizationID string     `json:"organization_id"`
	Provider       string     `json:"provider"`
	RealmID        string     `json:"realm_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ConnectedAt    time.Time  `json:"connected_at"`
}

type statusResponse struct {
	Connected bool `json:"connected"`
}

// AccountingStatus reports whether the organization holds a usable accounting
// connection. An expired access token is refreshed on the way.
func AccountingStatus(svc AccountingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "accounting integration not configured"))
			return
		}
		orgID, err := validators.ParseUUID(middleware.OrganizationIDFromContext(ctx), "organization_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing"))
			return
		}

		if _, err := svc.AccessToken(ctx, orgID); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				responses.WriteSuccess(w, statusResponse{Connected: false})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, statusResponse{Connected: true})
	}
}

// AccountingConnect issues a state and returns the provider authorization URL.
func AccountingConnect(svc AccountingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "accounting integration not configured"))
			return
		}
		orgID, err := validators.ParseUUID(middleware.OrganizationIDFromContext(ctx), "organization_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing"))
			return
		}

		url, err := svc.Begin(ctx, orgID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, connectResponse{AuthorizationURL: url})
	}
}

// AccountingCallback completes the handshake. It is public; the single-use
// state is what ties the callback to an organization.
func AccountingCallback(svc AccountingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "accounting integration not configured"))
			return
		}

		q := r.URL.Query()
		if providerErr := strings.TrimSpace(q.Get("error")); providerErr != "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authorization denied").
				WithDetails(map[string]any{"error": providerErr}))
			return
		}
		state := strings.TrimSpace(q.Get("state"))
		if state == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "state is required"))
			return
		}

		conn, err := svc.Complete(ctx, state, q.Get("code"), strings.TrimSpace(q.Get("realmId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"message": "accounting connected",
			"connection": connectionResponse{
				OrganizationID: conn.OrganizationID.String(),
				Provider:       conn.Provider,
				RealmID:        conn.RealmID,
				ExpiresAt:      conn.ExpiresAt,
				ConnectedAt:    conn.ConnectedAt,
			},
		})
	}
}
