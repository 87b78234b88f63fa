package graceperiod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var day0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) organizations.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Organization{}))
	return organizations.NewRepository(conn)
}

func seed(t *testing.T, repo organizations.Repository, name string, status enums.OrganizationStatus, failedAt *time.Time) *models.Organization {
	t.Helper()
	org := &models.Organization{
		Name:               name,
		ContactName:        "Ops",
		Email:              name + "@example.com",
		Address:            "1 Market Street",
		VerificationStatus: enums.VerificationStatusApproved,
		PaymentFailedAt:    failedAt,
	}
	if status != "" {
		org.Status = &status
	}
	require.NoError(t, repo.CreateOrganization(context.Background(), org))
	return org
}

type countingNotifier struct{ suspended int }

func (c *countingNotifier) Suspended(context.Context, *models.Organization) error {
	c.suspended++
	return errors.New("smtp down")
}

type recordingMetrics struct {
	results map[string]int
	moves   []string
}

func (r *recordingMetrics) IncTransition(from, to string) { r.moves = append(r.moves, from+"->"+to) }

func (r *recordingMetrics) AddSweepResult(result string, count int) {
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result] += count
}

func newSweeper(t *testing.T, repo organizations.Repository, now time.Time, notifier suspensionNotifier, metrics sweepRecorder) *Sweeper {
	t.Helper()
	sweeper, err := NewSweeper(SweeperParams{
		Organizations:    repo,
		Notifier:         notifier,
		Metrics:          metrics,
		Logger:           logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		DefaultGraceDays: 14,
		Now:              func() time.Time { return now },
	})
	require.NoError(t, err)
	return sweeper
}

func statusOf(t *testing.T, repo organizations.Repository, id uuid.UUID) enums.OrganizationStatus {
	t.Helper()
	org, err := repo.GetOrganization(context.Background(), id)
	require.NoError(t, err)
	return org.CurrentStatus()
}

func TestSweepSuspendsOnlyExpiredPastDue(t *testing.T) {
	repo := newRepo(t)
	failed0 := day0
	failed10 := day0.AddDate(0, 0, 10)

	expired := seed(t, repo, "expired", enums.OrganizationStatusPastDue, &failed0)
	inGrace := seed(t, repo, "ingrace", enums.OrganizationStatusPastDue, &failed10)
	active := seed(t, repo, "active", enums.OrganizationStatusActive, &failed0)
	noFailure := seed(t, repo, "nofailure", enums.OrganizationStatusPastDue, nil)
	trialing := seed(t, repo, "trialing", enums.OrganizationStatusTrialing, nil)

	notifier := &countingNotifier{}
	metrics := &recordingMetrics{}
	summary, err := newSweeper(t, repo, day0.AddDate(0, 0, 15), notifier, metrics).Run(context.Background())
	require.NoError(t, err, "email failures must not fail the sweep")

	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Suspended)
	assert.Equal(t, 1, summary.InGrace)
	assert.Equal(t, []uuid.UUID{expired.ID}, summary.SuspendedIDs)

	assert.Equal(t, enums.OrganizationStatusSuspended, statusOf(t, repo, expired.ID))
	assert.Equal(t, enums.OrganizationStatusPastDue, statusOf(t, repo, inGrace.ID))
	assert.Equal(t, enums.OrganizationStatusActive, statusOf(t, repo, active.ID))
	assert.Equal(t, enums.OrganizationStatusPastDue, statusOf(t, repo, noFailure.ID))
	assert.Equal(t, enums.OrganizationStatusTrialing, statusOf(t, repo, trialing.ID))

	assert.Equal(t, 1, notifier.suspended)
	assert.Equal(t, []string{"past_due->suspended"}, metrics.moves)
	assert.Equal(t, 1, metrics.results["suspended"])
	assert.Equal(t, 1, metrics.results["in_grace"])
}

func TestSweepHonorsGraceOverride(t *testing.T) {
	repo := newRepo(t)
	failed := day0
	org := seed(t, repo, "override", enums.OrganizationStatusPastDue, &failed)
	thirty := 30
	org.GracePeriodDays = &thirty
	require.NoError(t, repo.UpdateOrganization(context.Background(), org))

	summary, err := newSweeper(t, repo, day0.AddDate(0, 0, 15), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Suspended)
	assert.Equal(t, enums.OrganizationStatusPastDue, statusOf(t, repo, org.ID))

	summary, err = newSweeper(t, repo, day0.AddDate(0, 0, 31), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Suspended)
}

func TestSweepWithZeroDefaultGrace(t *testing.T) {
	repo := newRepo(t)
	failed := day0
	org := seed(t, repo, "nograce", enums.OrganizationStatusPastDue, &failed)

	sweeper, err := NewSweeper(SweeperParams{
		Organizations:    repo,
		Logger:           logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		DefaultGraceDays: 0,
		Now:              func() time.Time { return day0.Add(time.Hour) },
	})
	require.NoError(t, err)

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Suspended)
	assert.Equal(t, enums.OrganizationStatusSuspended, statusOf(t, repo, org.ID))
}

func TestSweepBoundaryStaysInGrace(t *testing.T) {
	repo := newRepo(t)
	failed := day0
	org := seed(t, repo, "boundary", enums.OrganizationStatusPastDue, &failed)

	summary, err := newSweeper(t, repo, day0.AddDate(0, 0, 14), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InGrace)
	assert.Equal(t, enums.OrganizationStatusPastDue, statusOf(t, repo, org.ID))
}

type failingUpdateRepo struct {
	organizations.Repository
	failID uuid.UUID
}

func (f *failingUpdateRepo) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == f.failID {
		return errors.New("connection reset")
	}
	return f.Repository.UpdateOrganization(ctx, org)
}

func TestSweepAggregatesRowFailures(t *testing.T) {
	repo := newRepo(t)
	failedEarly := day0.AddDate(0, 0, -1)
	failed := day0
	broken := seed(t, repo, "broken", enums.OrganizationStatusPastDue, &failedEarly)
	healthy := seed(t, repo, "healthy", enums.OrganizationStatusPastDue, &failed)

	sweeper := newSweeper(t, &failingUpdateRepo{Repository: repo, failID: broken.ID}, day0.AddDate(0, 0, 20), nil, nil)
	summary, err := sweeper.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID.String())
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []uuid.UUID{healthy.ID}, summary.SuspendedIDs)
	assert.Equal(t, enums.OrganizationStatusSuspended, statusOf(t, repo, healthy.ID))
	assert.Equal(t, enums.OrganizationStatusPastDue, statusOf(t, repo, broken.ID))
}
