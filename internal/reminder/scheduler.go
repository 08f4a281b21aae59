package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs Notifier.Sweep every interval, plus once shortly after
// Start. Sweeps never overlap.
type Scheduler struct {
	notifier *Notifier
	interval time.Duration
	spec     string
	jitter   time.Duration
	logger   *slog.Logger

	cron    *cron.Cron
	running sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewScheduler(notifier *Notifier, interval, jitter time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		notifier: notifier,
		interval: interval,
		spec:     "@every " + interval.String(),
		jitter:   jitter,
		logger:   logger,
	}
}

// Start schedules the sweeps. ctx bounds every sweep; cancel it or call
// Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("reminder interval must be positive, got %s", s.interval)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	s.cron = c
	s.cron.Start()

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)

		var delay time.Duration
		if s.jitter > 0 {
			delay = time.Duration(rand.Int63n(int64(s.jitter)))
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			s.run(ctx)
		}
	}()

	s.logger.Info("reminder scheduler started", "interval", s.interval, "jitter", s.jitter)
	return nil
}

// Stop cancels in-flight sweeps and waits for them to return. It is a no-op
// when Start did not succeed.
func (s *Scheduler) Stop() {
	if s.cron == nil || s.done == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	<-s.done
	s.logger.Info("reminder scheduler stopped")
}

// run performs one sweep unless another is still in progress.
func (s *Scheduler) run(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Debug("reminder sweep still running, skipping")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	stats, err := s.notifier.Sweep(ctx)
	if err != nil {
		s.logger.Warn("reminder sweep aborted", "error", err,
			"tenants", stats.Tenants, "sent", stats.Sent, "failed", stats.Failed)
		return
	}

	s.logger.Info("reminder sweep finished",
		"tenants", stats.Tenants,
		"loans", stats.Loans,
		"sent", stats.Sent,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", time.Since(start))
}
