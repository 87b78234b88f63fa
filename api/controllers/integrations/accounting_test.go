package integrations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/proppilot-backend/api/middleware"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
)

type stubAccounting struct {
	beganFor uuid.UUID
	state    string
	code     string
	realm    string
	err      error
	tokenFor uuid.UUID
	tokenErr error
}

func (s *stubAccounting) Begin(ctx context.Context, orgID uuid.UUID) (string, error) {
	s.beganFor = orgID
	return "https://provider.example/authorize?state=abc", nil
}

func (s *stubAccounting) Complete(ctx context.Context, state, code, realmID string) (*models.AccountingConnection, error) {
	s.state, s.code, s.realm = state, code, realmID
	if s.err != nil {
		return nil, s.err
	}
	return &models.AccountingConnection{OrganizationID: uuid.New(), Provider: "quickbooks", RealmID: realmID, ConnectedAt: time.Now()}, nil
}

func (s *stubAccounting) AccessToken(ctx context.Context, orgID uuid.UUID) (string, error) {
	s.tokenFor = orgID
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return "at-1", nil
}

func TestAccountingConnectUsesOrganizationFromToken(t *testing.T) {
	svc := &stubAccounting{}
	orgID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/accounting/connect", nil)
	req = req.WithContext(middleware.WithOrganizationID(req.Context(), orgID.String()))
	rec := httptest.NewRecorder()
	AccountingConnect(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.beganFor != orgID {
		t.Fatalf("expected begin for %s, got %s", orgID, svc.beganFor)
	}
	if !strings.Contains(rec.Body.String(), "authorization_url") {
		t.Fatalf("missing authorization url: %s", rec.Body.String())
	}
}

func TestAccountingConnectNotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	AccountingConnect(nil, nil)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestAccountingCallback(t *testing.T) {
	svc := &stubAccounting{}
	rec := httptest.NewRecorder()
	AccountingCallback(svc, nil)(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s1&code=c1&realmId=r1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.state != "s1" || svc.code != "c1" || svc.realm != "r1" {
		t.Fatalf("unexpected args %+v", svc)
	}
}

func TestAccountingCallbackRejectsMissingStateAndProviderError(t *testing.T) {
	svc := &stubAccounting{}
	for _, target := range []string{"/cb?code=c1", "/cb?error=access_denied&state=s1"} {
		rec := httptest.NewRecorder()
		AccountingCallback(svc, nil)(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
	}
	if svc.state != "" {
		t.Fatalf("service should not be called")
	}
}

func TestAccountingCallbackExpiredState(t *testing.T) {
	svc := &stubAccounting{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired state")}
	rec := httptest.NewRecorder()
	AccountingCallback(svc, nil)(rec, httptest.NewRequest(http.MethodGet, "/cb?state=old&code=c1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAccountingStatus(t *testing.T) {
	orgID := uuid.New()
	call := func(svc *stubAccounting) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/accounting/status", nil)
		req = req.WithContext(middleware.WithOrganizationID(req.Context(), orgID.String()))
		rec := httptest.NewRecorder()
		AccountingStatus(svc, nil)(rec, req)
		return rec
	}

	svc := &stubAccounting{}
	rec := call(svc)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connected":true`) {
		t.Fatalf("expected connected, got %d %s", rec.Code, rec.Body.String())
	}
	if svc.tokenFor != orgID {
		t.Fatalf("expected token lookup for %s, got %s", orgID, svc.tokenFor)
	}
	if strings.Contains(rec.Body.String(), "at-1") {
		t.Fatalf("access token leaked in response: %s", rec.Body.String())
	}

	rec = call(&stubAccounting{tokenErr: pkgerrors.New(pkgerrors.CodeNotFound, "accounting tool not connected")})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connected":false`) {
		t.Fatalf("expected disconnected, got %d %s", rec.Code, rec.Body.String())
	}

	rec = call(&stubAccounting{tokenErr: pkgerrors.New(pkgerrors.CodeProvider, "refresh access token")})
	if rec.Code == http.StatusOK {
		t.Fatalf("refresh failure should not report success: %s", rec.Body.String())
	}
}
