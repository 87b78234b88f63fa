package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/proppilot-backend/internal/graceperiod"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

type graceSweeper interface {
	Run(ctx context.Context) (graceperiod.Summary, error)
}

// GraceSweepJobParams configures the scheduled grace period sweep.
type GraceSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper graceSweeper
}

// NewGraceSweepJob wraps the sweeper as a cron job.
func NewGraceSweepJob(params GraceSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("grace sweeper required")
	}
	return &graceSweepJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type graceSweepJob struct {
	logg    *logger.Logger
	sweeper graceSweeper
}

func (j *graceSweepJob) Name() string { return "grace-period-sweep" }

func (j *graceSweepJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   summary.Scanned,
		"suspended": summary.Suspended,
		"in_grace":  summary.InGrace,
	})
	j.logg.Info(logCtx, "grace sweep finished")
	return err
}
