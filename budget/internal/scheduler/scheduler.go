// Package scheduler runs the billing period reset on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crnapay/crnapay-stack/common/logging"
)

// Resetter lifts every budget pause.
type Resetter interface {
	ResumeAll(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and fires the reset job.
type Scheduler struct {
	cron     *cron.Cron
	resetter Resetter
	spec     string // cron spec, e.g. "@monthly"
	timeout  time.Duration
	logger   *logging.Logger
}

// New creates a Scheduler running the reset on spec, evaluated in loc.
// Budgets reset on the billing account's calendar month, so loc should be the
// billing account's time zone.
func New(resetter Resetter, spec string, loc *time.Location, logger *logging.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		resetter: resetter,
		spec:     spec,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunReset(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("budget reset scheduled", "spec", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunReset lifts every pause once.
func (s *Scheduler) RunReset(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.resetter.ResumeAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "budget reset failed", logging.Error(err))
		return
	}
	s.logger.InfoContext(ctx, "budget reset complete", "resumed", n)
}
