package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/angelmondragon/proppilot-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrganizationsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_organizations.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS organizations",
		"verification_status verification_status NOT NULL DEFAULT 'pending'",
		"status organization_status NULL",
		"CONSTRAINT organizations_email_unique UNIQUE (email)",
		"grace_period_days BETWEEN 0 AND 90",
		"WHERE status = 'past_due'",
		"DROP TABLE IF EXISTS organizations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSubscriptionPlansMigrationSeedsTrialDays(t *testing.T) {
	content := readMigration(t, "*_create_subscription_plans.sql")
	checks := []string{
		"('starter', 'Starter', 49.00, 'usd', 'month', 14,",
		"('professional', 'Professional', 149.00, 'usd', 'month', 14,",
		"('enterprise', 'Enterprise', 499.00, 'usd', 'month', 30,",
		"ON CONFLICT (tier) DO NOTHING",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAutoMigrateSQLiteSeedsCatalogOnce(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx := context.Background()

	if err := migrate.AutoMigrateSQLite(ctx, conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := conn.Model(&models.SubscriptionPlan{}).Where("tier = ?", enums.PlanTierStarter).Update("name", "Starter (custom)").Error; err != nil {
		t.Fatalf("rename plan: %v", err)
	}
	if err := migrate.AutoMigrateSQLite(ctx, conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var plans []models.SubscriptionPlan
	if err := conn.Order("tier").Find(&plans).Error; err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
	trials := map[enums.PlanTier]int{}
	for _, p := range plans {
		trials[p.Tier] = p.TrialDays
		if p.Tier == enums.PlanTierStarter && p.Name != "Starter (custom)" {
			t.Fatalf("seed overwrote existing plan: %q", p.Name)
		}
	}
	if trials[enums.PlanTierStarter] != 14 || trials[enums.PlanTierProfessional] != 14 || trials[enums.PlanTierEnterprise] != 30 {
		t.Fatalf("unexpected trial days: %+v", trials)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Accounting Realm!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_accounting_realm.sql") {
		t.Fatalf("unexpected filename %q", filepath.Base(path))
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestRunRequiresDatabase(t *testing.T) {
	if _, err := migrate.Run(context.Background(), nil, "migrations", "up"); err == nil {
		t.Fatal("expected error without a database")
	}
	if _, err := migrate.MigrateToVersion(context.Background(), nil, "migrations", "not-a-version"); err == nil || !strings.Contains(err.Error(), "invalid version") {
		t.Fatalf("expected invalid version error, got %v", err)
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("20260301090000_ok.sql", "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	write("add_units.sql", "-- +goose Up\n")
	write("20260301090500_no_down.sql", "-- +goose Up\nSELECT 1;\n")

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"add_units.sql: expected", `20260301090500_no_down.sql: missing "-- +goose Down"`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
