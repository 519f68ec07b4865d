// Package cronjobs runs the periodic maintenance tasks: the notification tray
// sweep, the offline replay trigger and the alert auto-hide.
package cronjobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Jobs are the callbacks the scheduler drives. Nil jobs are not scheduled.
type Jobs struct {
	SweepNotifications func() int
	FireSync           func(ctx context.Context) []string
	ExpireAlerts       func() bool
}

type Schedule struct {
	Sweep      string        // cron spec, e.g. "@hourly"
	SyncRetry  time.Duration // replay trigger interval
	AlertCheck time.Duration
}

type Scheduler struct {
	cron   *cron.Cron
	cancel context.CancelFunc
	logger *slog.Logger
}

// Start schedules the jobs and starts the cron runner.
func Start(s Schedule, jobs Jobs, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	ctx, cancel := context.WithCancel(context.Background())

	if jobs.SweepNotifications != nil {
		if _, err := c.AddFunc(s.Sweep, func() {
			if n := jobs.SweepNotifications(); n > 0 {
				logger.Info("cron: stale notifications closed", "count", n)
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule notification sweep %q: %w", s.Sweep, err)
		}
	}

	if jobs.FireSync != nil && s.SyncRetry > 0 {
		c.Schedule(cron.Every(s.SyncRetry), cron.FuncJob(func() {
			if done := jobs.FireSync(ctx); len(done) > 0 {
				logger.Info("cron: sync tags fired", "tags", done)
			}
		}))
	}

	if jobs.ExpireAlerts != nil && s.AlertCheck > 0 {
		c.Schedule(cron.Every(s.AlertCheck), cron.FuncJob(func() {
			if jobs.ExpireAlerts() {
				logger.Debug("cron: visible alert expired")
			}
		}))
	}

	logger.Info("starting cron jobs", "entries", len(c.Entries()))
	c.Start()
	return &Scheduler{cron: c, cancel: cancel, logger: logger}, nil
}

// Stop halts scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("cron jobs still running at shutdown")
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
