// Package auth mints and verifies the HS256 access tokens presented to the API.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/proppilot-backend/pkg/enums"
)

// AccessTokenPayload is the caller identity to encode in a new token.
type AccessTokenPayload struct {
	UserID         uuid.UUID
	OrganizationID *uuid.UUID
	Role           enums.MemberRole
	JTI            string
}

// AccessTokenClaims is the decoded token. Operators carry the admin role and
// no organization; owners and members must be scoped to one.
type AccessTokenClaims struct {
	UserID         uuid.UUID        `json:"user_id"`
	OrganizationID *uuid.UUID       `json:"organization_id,omitempty"`
	Role           enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks in jwt.Parser.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token has no user_id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token role %q is not recognised", c.Role)
	}
	if c.Role.OrganizationScoped() && c.OrganizationID == nil {
		return fmt.Errorf("%s token has no organization_id", c.Role)
	}
	return nil
}
