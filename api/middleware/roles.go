package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/proppilot-backend/api/responses"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

// RequireRole admits callers whose token carries one of roles. Auth must run first.
func RequireRole(logg *logger.Logger, roles ...enums.MemberRole) func(http.Handler) http.Handler {
	return guard(logg, func(id identity) *pkgerrors.Error {
		if !slices.Contains(roles, enums.MemberRole(id.role)) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "role required").
				WithDetails(map[string]any{"role": id.role})
		}
		return nil
	})
}

// RequireOrganization rejects tokens that are not scoped to an organization.
func RequireOrganization(logg *logger.Logger) func(http.Handler) http.Handler {
	return guard(logg, func(id identity) *pkgerrors.Error {
		if id.organizationID == "" {
			return pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
		}
		return nil
	})
}

func guard(logg *logger.Logger, check func(identity) *pkgerrors.Error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(identityFrom(r.Context())); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
