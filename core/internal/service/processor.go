// Package service runs submissions through the pipeline for the consumer and
// HTTP entry points, and keeps the processor's counters.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/messaging"
	"github.com/crnapay/crnapay-stack/core/internal/metrics"
	"github.com/crnapay/crnapay-stack/core/internal/pipeline"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Entry point labels used in metrics.
const (
	SourceConsumer = "consumer"
	SourceHTTP     = "http"
	SourcePubSub   = "pubsub"
)

// Guard reports budget pauses.
type Guard interface {
	Check(ctx context.Context, target budgetguard.Target) error
}

// DeadLetter stores submissions that will not be stored.
type DeadLetter interface {
	Write(ctx context.Context, reason string, msg *messaging.Message, errs []string) error
}

// Processor wraps the pipeline and captures basic telemetry.
type Processor struct {
	pipeline   *pipeline.Pipeline
	dlq        DeadLetter
	guard      Guard
	maxDeliver uint64
	logger     *logging.Logger

	startedAt    time.Time
	stored       atomic.Uint64
	rejected     atomic.Uint64
	malformed    atomic.Uint64
	failed       atomic.Uint64
	deadLettered atomic.Uint64
}

// Option configures a Processor.
type Option func(*Processor)

// WithDeadLetter sets the dead-letter queue. Without one, rejected and
// malformed submissions are only logged.
func WithDeadLetter(d DeadLetter) Option {
	return func(p *Processor) { p.dlq = d }
}

// WithGuard sets the budget guard consulted before every run.
func WithGuard(g Guard) Option {
	return func(p *Processor) { p.guard = g }
}

// WithMaxDeliver tells the processor the consumer's redelivery limit, so the
// last failed attempt is dead-lettered instead of silently expiring.
func WithMaxDeliver(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxDeliver = uint64(n)
		}
	}
}

// NewProcessor creates a new Processor instance.
func NewProcessor(p *pipeline.Pipeline, logger *logging.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	proc := &Processor{
		pipeline:  p,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(proc)
	}
	return proc
}

// Process runs raw through the pipeline. It returns budgetguard.ErrPaused
// while the core target is paused.
func (p *Processor) Process(ctx context.Context, source string, raw submission.Raw) (pipeline.Outcome, error) {
	if err := p.checkGuard(ctx); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(source, "paused").Inc()
		return pipeline.Outcome{}, err
	}

	start := time.Now()
	out, err := p.pipeline.Process(ctx, raw)
	metrics.PipelineDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		p.failed.Add(1)
		metrics.SubmissionsTotal.WithLabelValues(source, "failed").Inc()
		return out, err
	}

	switch out.Status {
	case pipeline.StatusRejected:
		p.rejected.Add(1)
		metrics.ValidationErrors.Add(float64(len(out.Errors)))
	case pipeline.StatusStored:
		p.stored.Add(1)
	}
	metrics.SubmissionsTotal.WithLabelValues(source, string(out.Status)).Inc()
	return out, nil
}

// HandleMessage is the JetStream handler for submissions.received.
//
// Stored and rejected submissions are acknowledged. Malformed payloads are
// dead-lettered and terminated. Insert failures and deliveries that arrive
// while core is paused are redelivered, and the final attempt is
// dead-lettered first so it can be replayed.
func (p *Processor) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	raw, err := pipeline.Decode(msg.Data)
	if err != nil {
		p.malformed.Add(1)
		metrics.SubmissionsTotal.WithLabelValues(SourceConsumer, "malformed").Inc()
		if dlqErr := p.deadLetter(ctx, messaging.DLQReasonMalformed, msg, []string{err.Error()}); dlqErr != nil {
			return fmt.Errorf("dead-letter malformed submission: %w", dlqErr)
		}
		return messaging.Terminal(err)
	}

	out, err := p.Process(ctx, SourceConsumer, raw)
	if err != nil {
		if p.maxDeliver > 0 && msg.Attempt >= p.maxDeliver {
			reason := messaging.DLQReasonInsertFailed
			if errors.Is(err, budgetguard.ErrPaused) {
				reason = messaging.DLQReasonPaused
			}
			if dlqErr := p.deadLetter(ctx, reason, msg, []string{err.Error()}); dlqErr != nil {
				p.logger.ErrorContext(ctx, "failed to dead-letter final attempt",
					logging.SubmissionID(msg.Header(messaging.HeaderSubmissionID)),
					logging.Error(dlqErr))
			}
		}
		return err
	}

	if out.Status == pipeline.StatusRejected {
		// The rejection is final either way; a failed audit copy is logged
		// rather than redelivered.
		if err := p.deadLetter(ctx, messaging.DLQReasonRejected, msg, out.Errors); err != nil {
			p.logger.WarnContext(ctx, "failed to dead-letter rejected submission",
				logging.SubmissionID(out.SubmissionID),
				logging.Error(err))
		}
	}
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, reason string, msg *messaging.Message, errs []string) error {
	if p.dlq == nil {
		p.logger.WarnContext(ctx, "no dead-letter queue configured, dropping audit copy",
			"reason", reason,
			logging.SubmissionID(msg.Header(messaging.HeaderSubmissionID)))
		return nil
	}
	if err := p.dlq.Write(ctx, reason, msg, errs); err != nil {
		metrics.DLQWriteErrors.Inc()
		return err
	}
	p.deadLettered.Add(1)
	metrics.DLQWrites.WithLabelValues(reason).Inc()
	return nil
}

// checkGuard returns ErrPaused while paused. An unreachable guard backend
// is logged and treated as not paused.
func (p *Processor) checkGuard(ctx context.Context) error {
	if p.guard == nil {
		return nil
	}
	err := p.guard.Check(ctx, budgetguard.TargetCore)
	if err == nil || errors.Is(err, budgetguard.ErrPaused) {
		return err
	}
	p.logger.WarnContext(ctx, "budget guard unavailable, continuing", logging.Error(err))
	return nil
}

// Stats returns a snapshot of processor metrics.
type Stats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Stored        uint64 `json:"stored"`
	Rejected      uint64 `json:"rejected"`
	Malformed     uint64 `json:"malformed"`
	Failed        uint64 `json:"failed"`
	DeadLettered  uint64 `json:"dead_lettered"`
}

// Health returns live status for health checks.
func (p *Processor) Health() Stats {
	return Stats{
		UptimeSeconds: int64(time.Since(p.startedAt).Seconds()),
		Stored:        p.stored.Load(),
		Rejected:      p.rejected.Load(),
		Malformed:     p.malformed.Load(),
		Failed:        p.failed.Load(),
		DeadLettered:  p.deadLettered.Load(),
	}
}
