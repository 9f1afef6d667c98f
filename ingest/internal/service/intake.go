// Package service stamps incoming submissions and queues them for the core
// processor.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/messaging"
	"github.com/crnapay/crnapay-stack/common/middleware"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
	"github.com/crnapay/crnapay-stack/core/pkg/validation"
	"github.com/crnapay/crnapay-stack/ingest/internal/metrics"
)

// Publisher stores messages on the broker.
type Publisher interface {
	PublishMsg(ctx context.Context, msg *messaging.Message) error
}

// Guard reports budget pauses.
type Guard interface {
	Check(ctx context.Context, target budgetguard.Target) error
}

// ValidationError lists every rule a submission broke.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submission failed validation with %d errors", len(e.Errors))
}

// Receipt identifies a queued submission.
type Receipt struct {
	SubmissionID string    `json:"submission_id"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Stats summarizes intake since start-up.
type Stats struct {
	Received     int64     `json:"received"`
	Queued       int64     `json:"queued"`
	Rejected     int64     `json:"rejected"`
	Failed       int64     `json:"failed"`
	TotalBytes   int64     `json:"total_bytes"`
	LastReceived time.Time `json:"last_received,omitzero"`
}

// IntakeService stamps server fields on a submission, checks it with the
// shared validation rules and publishes it on submissions.received.
type IntakeService struct {
	publisher         Publisher
	guard             Guard
	defaultDataSource string
	preValidate       bool
	logger            *logging.Logger

	now   func() time.Time
	newID func() (uuid.UUID, error)

	statsMutex sync.RWMutex
	stats      Stats
}

// Option configures an IntakeService.
type Option func(*IntakeService)

// WithGuard makes the service refuse submissions while ingest is paused.
func WithGuard(g Guard) Option {
	return func(s *IntakeService) { s.guard = g }
}

// WithPreValidation toggles running the validation rules before publishing.
func WithPreValidation(enabled bool) Option {
	return func(s *IntakeService) { s.preValidate = enabled }
}

// NewIntakeService creates a service publishing through publisher.
func NewIntakeService(publisher Publisher, defaultDataSource string, logger *logging.Logger, opts ...Option) *IntakeService {
	if logger == nil {
		logger = logging.Default()
	}
	s := &IntakeService{
		publisher:         publisher,
		defaultDataSource: defaultDataSource,
		preValidate:       true,
		logger:            logger,
		now:               time.Now,
		newID:             uuid.NewV7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit queues raw for processing. Rejections return *ValidationError and a
// paused ingest target returns budgetguard.ErrPaused. size is the request
// body length, used for stats only.
func (s *IntakeService) Submit(ctx context.Context, raw submission.Raw, size int) (Receipt, error) {
	if err := s.checkGuard(ctx); err != nil {
		return Receipt{}, err
	}

	id, err := s.newID()
	if err != nil {
		return Receipt{}, fmt.Errorf("generate submission id: %w", err)
	}
	receivedAt := s.now().UTC()

	// Server fields are always ours; a client-supplied value is overwritten.
	raw[submission.FieldSubmissionID] = id.String()
	raw[submission.FieldSubmissionTimestamp] = receivedAt.Format(time.RFC3339Nano)
	if coerce.IsBlank(raw.Get(submission.FieldDataSource)) {
		raw[submission.FieldDataSource] = s.defaultDataSource
	}

	if s.preValidate {
		if result := validation.Validate(raw); !result.Accepted() {
			metrics.ValidationErrors.Add(float64(len(result.Errors)))
			s.updateStats(size, receivedAt, outcomeRejected)
			return Receipt{}, &ValidationError{Errors: result.Errors}
		}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		s.updateStats(size, receivedAt, outcomeFailed)
		return Receipt{}, fmt.Errorf("encode submission: %w", err)
	}

	msg := &messaging.Message{
		Subject: messaging.SubjectSubmissionsReceived,
		Data:    data,
		Metadata: map[string]string{
			messaging.HeaderSubmissionID: id.String(),
			messaging.HeaderContentType:  "application/json",
		},
	}
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		msg.Metadata[messaging.HeaderRequestID] = reqID
	}

	start := time.Now()
	err = s.publisher.PublishMsg(ctx, msg)
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PublishErrors.Inc()
		s.updateStats(size, receivedAt, outcomeFailed)
		return Receipt{}, fmt.Errorf("queue submission %s: %w", id, err)
	}

	s.updateStats(size, receivedAt, outcomeQueued)
	s.logger.InfoContext(ctx, "submission queued",
		logging.SubmissionID(id.String()),
		logging.Subject(msg.Subject))
	return Receipt{SubmissionID: id.String(), ReceivedAt: receivedAt}, nil
}

// checkGuard returns ErrPaused while ingest is paused. An unreachable guard
// backend is logged and treated as not paused.
func (s *IntakeService) checkGuard(ctx context.Context) error {
	if s.guard == nil {
		return nil
	}
	err := s.guard.Check(ctx, budgetguard.TargetIngest)
	if err == nil || errors.Is(err, budgetguard.ErrPaused) {
		return err
	}
	s.logger.WarnContext(ctx, "budget guard unavailable, accepting submission", logging.Error(err))
	return nil
}

type outcome int

const (
	outcomeQueued outcome = iota
	outcomeRejected
	outcomeFailed
)

func (s *IntakeService) updateStats(bytes int, at time.Time, o outcome) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.Received++
	s.stats.TotalBytes += int64(bytes)
	s.stats.LastReceived = at

	switch o {
	case outcomeQueued:
		s.stats.Queued++
	case outcomeRejected:
		s.stats.Rejected++
	case outcomeFailed:
		s.stats.Failed++
	}
}

// GetStats returns a snapshot of intake counters.
func (s *IntakeService) GetStats() Stats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}
