package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ruslan-16/ScheduleLessons1Bot/internal/reminder"
)

// Dispatcher is what the scheduler drives; *reminder.Dispatcher implements it.
type Dispatcher interface {
	Scan(ctx context.Context) (reminder.ScanReport, error)
	Purge(ctx context.Context) (int, error)
}

// Config sets the cadence of the periodic jobs.
type Config struct {
	ScanInterval time.Duration
	PurgeSpec    string // cron spec or descriptor, e.g. "@daily"
	Location     *time.Location
}

// Scheduler periodically scans the schedule and purges old reminder records.
type Scheduler struct {
	d   Dispatcher
	log *zap.Logger
	c   *cron.Cron
	ctx context.Context // set by Run before the cron starts
}

// New registers the scan and purge jobs. Jobs never overlap with themselves:
// a firing that arrives while the previous run is still busy is skipped.
func New(d Dispatcher, log *zap.Logger, cfg Config) (*Scheduler, error) {
	if cfg.ScanInterval <= 0 {
		return nil, errors.New("scan interval must be positive")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{d: d, log: log.Named("scheduler"), ctx: context.Background()}

	cl := cronLogger{s.log.Sugar()}
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	// Every rounds down to whole seconds.
	s.c.Schedule(cron.Every(cfg.ScanInterval), cron.FuncJob(func() { s.scan(s.ctx) }))
	if cfg.PurgeSpec != "" {
		if _, err := s.c.AddFunc(cfg.PurgeSpec, func() { s.purge(s.ctx) }); err != nil {
			return nil, fmt.Errorf("purge spec %q: %w", cfg.PurgeSpec, err)
		}
	}
	return s, nil
}

// Run performs one scan right away, then runs the jobs until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.c.Start()
	s.log.Info("scheduler started")
	first := make(chan struct{})
	go func() {
		defer close(first)
		s.scan(ctx)
	}()

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	// Wait for running jobs to finish.
	<-s.c.Stop().Done()
	<-first
}

func (s *Scheduler) scan(ctx context.Context) {
	rep, err := s.d.Scan(ctx)
	switch {
	case errors.Is(err, reminder.ErrScanInProgress):
		s.log.Debug("scan skipped, previous still running")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.log.Error("scan failed", zap.Error(err))
	case rep.Sent > 0 || rep.Failed > 0:
		s.log.Info("scan done",
			zap.Int("lessons", rep.Lessons),
			zap.Int("sent", rep.Sent),
			zap.Int("failed", rep.Failed),
			zap.Int("skipped", rep.Skipped),
		)
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	if _, err := s.d.Purge(ctx); err != nil {
		s.log.Error("purge failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
