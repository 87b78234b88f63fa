package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

// ServiceParams configure the cron service. Schedule is a five-field cron
// expression evaluated in UTC; when empty the jobs run every Interval.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Schedule string
}

// Service runs every registered job once per tick while holding Lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	schedule robfigcron.Schedule
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	schedule, err := parseSchedule(params.Schedule, params.Interval)
	if err != nil {
		return nil, err
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: schedule,
	}, nil
}

func parseSchedule(expr string, interval time.Duration) (robfigcron.Schedule, error) {
	if expr == "" {
		if interval <= 0 {
			interval = defaultInterval
		}
		return robfigcron.Every(interval), nil
	}
	schedule, err := robfigcron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// Run executes one cycle immediately, then hands the schedule to a robfig
// runner until ctx is cancelled. Overlapping ticks are skipped.
func (s *Service) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	cronLog := runnerLogger{ctx: ctx, logg: s.logg}
	runner := robfigcron.New(
		robfigcron.WithLocation(time.UTC),
		robfigcron.WithLogger(cronLog),
		robfigcron.WithChain(robfigcron.Recover(cronLog), robfigcron.SkipIfStillRunning(cronLog)),
	)
	runner.Schedule(s.schedule, robfigcron.FuncJob(func() { s.RunOnce(ctx) }))
	runner.Start()
	s.logg.Info(s.logg.WithField(ctx, "next_run", s.schedule.Next(time.Now()).UTC()), "cron scheduler started")

	<-ctx.Done()
	// wait for an in-flight cycle to observe the cancellation and return
	<-runner.Stop().Done()
	return ctx.Err()
}

// RunOnce takes the lock and runs every job in registration order. A failed
// job does not stop the ones after it.
func (s *Service) RunOnce(ctx context.Context) {
	jobs := s.registry.Jobs()
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron lock unavailable", err)
		return
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		for _, job := range jobs {
			s.metrics.ObserveSkipped(job.Name())
		}
		return
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return
	}
	s.logg.Info(ctx, "cron job completed")
}

// runnerLogger adapts the service logger to robfig's logr-style interface.
type runnerLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l runnerLogger) Info(msg string, keysAndValues ...any) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron runner: "+msg)
}

func (l runnerLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron runner: "+msg, err)
}

func pairs(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
