// Package graceperiod suspends past-due organizations whose grace period has
// run out.
package graceperiod

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/proppilot-backend/internal/lifecycle"
	"github.com/angelmondragon/proppilot-backend/internal/organizations"
	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Summary reports what a sweep did.
type Summary struct {
	Scanned      int         `json:"scanned"`
	Suspended    int         `json:"suspended"`
	InGrace      int         `json:"in_grace"`
	Failed       int         `json:"failed"`
	SuspendedIDs []uuid.UUID `json:"suspended_ids"`
}

type suspensionNotifier interface {
	Suspended(ctx context.Context, org *models.Organization) error
}

type sweepRecorder interface {
	IncTransition(from, to string)
	AddSweepResult(result string, count int)
}

// SweeperParams configures the sweeper.
type SweeperParams struct {
	Organizations    organizations.Repository
	Notifier         suspensionNotifier
	Metrics          sweepRecorder
	Logger           *logger.Logger
	DefaultGraceDays int
	Now              func() time.Time
}

type Sweeper struct {
	orgs      organizations.Repository
	notifier  suspensionNotifier
	metrics   sweepRecorder
	logg      *logger.Logger
	graceDays int
	now       func() time.Time
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Organizations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organization repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		orgs:      params.Organizations,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		graceDays: params.DefaultGraceDays,
		now:       now,
	}, nil
}

// Run scans past-due organizations with a recorded failure. A failed row does
// not stop the scan; all row errors are returned together.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	summary := Summary{SuspendedIDs: []uuid.UUID{}}

	candidates, err := s.orgs.ListPastDueWithFailure(ctx)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list past due organizations")
	}
	now := s.now().UTC()

	var errs error
	for i := range candidates {
		org := &candidates[i]
		summary.Scanned++

		graceDays := lifecycle.ResolveGraceDays(org.GracePeriodDays, s.graceDays)
		if !lifecycle.IsGraceExpired(org.PaymentFailedAt, graceDays, now) {
			summary.InGrace++
			continue
		}
		if err := s.suspend(ctx, org); err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("suspend organization %s: %w", org.ID, err))
			continue
		}
		summary.Suspended++
		summary.SuspendedIDs = append(summary.SuspendedIDs, org.ID)
	}

	if s.metrics != nil {
		s.metrics.AddSweepResult("suspended", summary.Suspended)
		s.metrics.AddSweepResult("in_grace", summary.InGrace)
		s.metrics.AddSweepResult("failed", summary.Failed)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned":   summary.Scanned,
		"suspended": summary.Suspended,
		"in_grace":  summary.InGrace,
		"failed":    summary.Failed,
	}), "grace period sweep complete")
	return summary, errs
}

func (s *Sweeper) suspend(ctx context.Context, org *models.Organization) error {
	from := org.CurrentStatus()
	next, err := lifecycle.Transition(from, enums.OrganizationStatusSuspended)
	if err != nil {
		return err
	}
	org.Status = &next
	if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(from), string(next))
	}

	orgCtx := s.logg.WithOrganizationID(ctx, org.ID.String())
	s.logg.Info(orgCtx, "organization suspended after grace period")
	if s.notifier != nil {
		if err := s.notifier.Suspended(orgCtx, org); err != nil {
			s.logg.Warn(s.logg.WithField(orgCtx, "error", err.Error()), "suspension email failed")
		}
	}
	return nil
}
