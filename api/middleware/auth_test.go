package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/proppilot-backend/pkg/auth"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/google/uuid"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsOrganizationContext(t *testing.T) {
	orgID := uuid.New()
	token := mintTestToken(t, enums.MemberRoleOwner, &orgID)

	var captured struct {
		user string
		role string
		org  string
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.org = OrganizationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user == "" {
		t.Fatal("expected user id in context")
	}
	if captured.role != string(enums.MemberRoleOwner) {
		t.Fatalf("expected role owner got %s", captured.role)
	}
	if captured.org != orgID.String() {
		t.Fatalf("expected org %s got %s", orgID, captured.org)
	}
}

func TestRequireRoleAdmin(t *testing.T) {
	chain := func(token string) int {
		h := Auth(testJWT, nil)(RequireRole(nil, enums.MemberRoleAdmin)(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		return resp.Code
	}

	orgID := uuid.New()
	if code := chain(mintTestToken(t, enums.MemberRoleOwner, &orgID)); code != http.StatusForbidden {
		t.Fatalf("owner should be forbidden, got %d", code)
	}
	if code := chain(mintTestToken(t, enums.MemberRoleAdmin, nil)); code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", code)
	}
}

func TestRequireOrganization(t *testing.T) {
	h := Auth(testJWT, nil)(RequireOrganization(nil)(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.MemberRoleAdmin, nil))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without organization, got %d", resp.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"abc", "abc", true},
		{"Bearer ", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("bearerToken(%q) = %q,%v want %q,%v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIdentityAccumulates(t *testing.T) {
	ctx := WithOrganizationID(WithRole(WithUserID(context.Background(), "u1"), "owner"), "org-1")
	if UserIDFromContext(ctx) != "u1" || RoleFromContext(ctx) != "owner" || OrganizationIDFromContext(ctx) != "org-1" {
		t.Fatalf("identity lost fields: %+v", identityFrom(ctx))
	}
	if RoleFromContext(context.Background()) != "" {
		t.Fatalf("empty context should have no role")
	}
}

func mintTestToken(t *testing.T, role enums.MemberRole, orgID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID:         uuid.New(),
		OrganizationID: orgID,
		Role:           role,
		JTI:            uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
