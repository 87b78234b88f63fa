package registration

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/internal/risk"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/db"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubNotifier struct {
	rejected []string
	err      error
}

func (s *stubNotifier) Rejected(_ context.Context, org *models.Organization, _ string) error {
	s.rejected = append(s.rejected, org.Email)
	return s.err
}

func newTestService(t *testing.T, notifier *stubNotifier) (Service, organizations.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Organization{}, &models.BusinessVerificationLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := organizations.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		DB:            db.FromGorm(conn),
		Organizations: repo,
		Scorer: risk.NewScorer(config.RiskConfig{
			FraudPassThreshold: 50,
			ApproveThreshold:   85,
			ReviewThreshold:    50,
		}),
		Notifier: notifier,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func strPtr(v string) *string { return &v }

func TestRegisterApprovesCompleteBusiness(t *testing.T) {
	notifier := &stubNotifier{}
	svc, repo := newTestService(t, notifier)

	res, err := svc.Register(context.Background(), Request{
		BusinessName:  "Harbor Property Group",
		ContactName:   "Dana Reyes",
		Email:         "  Dana@HarborPG.com ",
		Phone:         strPtr("+1 (555) 201-3344"),
		Address:       "100 Harbor Blvd, Suite 4",
		LicenseNumber: strPtr("RE-0012345"),
		TaxID:         strPtr("12-3456789"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Decision != enums.VerificationStatusApproved {
		t.Fatalf("expected approved, got %s (flags %v)", res.Decision, res.Flags)
	}
	if res.Organization.Email != "dana@harborpg.com" {
		t.Fatalf("expected normalized email, got %q", res.Organization.Email)
	}
	if res.Organization.Status != nil {
		t.Fatalf("registration must not start billing, got status %v", *res.Organization.Status)
	}

	logs, err := repo.ListBusinessVerificationLogs(context.Background(), res.Organization.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Source != enums.VerificationSourceAutomated {
		t.Fatalf("expected one automated log, got %+v", logs)
	}
	if len(notifier.rejected) != 0 {
		t.Fatalf("no rejection email expected")
	}
}

func TestRegisterFraudFailureRejectsWithFlags(t *testing.T) {
	notifier := &stubNotifier{err: fmt.Errorf("sendgrid down")}
	svc, repo := newTestService(t, notifier)

	res, err := svc.Register(context.Background(), Request{
		BusinessName:  "Quick Rentals",
		ContactName:   "Sam",
		Email:         "owner@mailinator.com",
		Address:       "12 Main Street",
		LicenseNumber: strPtr("RE-0012345"),
		TaxID:         strPtr("12-3456789"),
	})
	if err != nil {
		t.Fatalf("register should succeed even when email fails: %v", err)
	}
	if res.Decision != enums.VerificationStatusRejected {
		t.Fatalf("expected rejected, got %s", res.Decision)
	}
	if res.FraudScore >= 50 {
		t.Fatalf("expected fraud score below threshold, got %d", res.FraudScore)
	}

	stored, err := repo.GetOrganization(context.Background(), res.Organization.ID)
	if err != nil {
		t.Fatalf("get org: %v", err)
	}
	if stored.VerificationStatus != enums.VerificationStatusRejected {
		t.Fatalf("expected stored rejected, got %s", stored.VerificationStatus)
	}

	logs, err := repo.ListBusinessVerificationLogs(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one log, got %d", len(logs))
	}
	want := map[string]bool{risk.FlagDisposableEmail: false, risk.FlagMissingPhone: false}
	for _, flag := range logs[0].Flags {
		if _, ok := want[flag]; ok {
			want[flag] = true
		}
	}
	for flag, seen := range want {
		if !seen {
			t.Fatalf("expected flag %s in %v", flag, logs[0].Flags)
		}
	}
	if len(notifier.rejected) != 1 {
		t.Fatalf("expected rejection email attempt, got %d", len(notifier.rejected))
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newTestService(t, nil)
	req := Request{
		BusinessName: "Harbor Property Group",
		ContactName:  "Dana",
		Email:        "dana@harborpg.com",
		Phone:        strPtr("+15552013344"),
		Address:      "100 Harbor Blvd",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	req.Email = "DANA@harborpg.com"
	_, err := svc.Register(context.Background(), req)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}
