package service

import (
	"context"
	"sync"
	"time"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
)

// StartFunc starts a consumer and returns the function that stops it.
type StartFunc func(ctx context.Context) (stop func(), err error)

// PauseChecker reports whether a target is paused.
type PauseChecker interface {
	IsPaused(ctx context.Context, target budgetguard.Target) (bool, error)
}

// Supervisor keeps the submissions consumer running only while the core
// target is not paused. Stopping the consumer leaves pending submissions in
// the work queue until processing resumes.
type Supervisor struct {
	start    StartFunc
	guard    PauseChecker
	interval time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	stop    func()
	running bool
}

// NewSupervisor creates a supervisor. guard may be nil, in which case the
// consumer always runs.
func NewSupervisor(start StartFunc, guard PauseChecker, interval time.Duration, logger *logging.Logger) *Supervisor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Supervisor{start: start, guard: guard, interval: interval, logger: logger}
}

// Run reconciles the consumer with the pause state until ctx is done, then
// stops the consumer.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.halt()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// Running reports whether the consumer is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) reconcile(ctx context.Context) {
	paused := false
	if s.guard != nil {
		p, err := s.guard.IsPaused(ctx, budgetguard.TargetCore)
		if err != nil {
			s.logger.WarnContext(ctx, "budget guard unavailable, keeping consumer running", logging.Error(err))
		} else {
			paused = p
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case paused && s.running:
		s.stop()
		s.stop, s.running = nil, false
		s.logger.WarnContext(ctx, "core paused by budget guard, consumer stopped")
	case !paused && !s.running:
		stop, err := s.start(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to start consumer", logging.Error(err))
			return
		}
		s.stop, s.running = stop, true
		s.logger.InfoContext(ctx, "consumer started")
	}
}

func (s *Supervisor) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stop()
		s.stop, s.running = nil, false
	}
}
