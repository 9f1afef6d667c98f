// Package monitor applies the budget policy to billing notifications and
// records the resulting pauses.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crnapay/crnapay-stack/budget/internal/metrics"
	"github.com/crnapay/crnapay-stack/budget/internal/policy"
	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/httputil"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/messaging"
)

// Action names published on ops.budget.actions.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionNone   = "none"
)

// Guard stores pauses.
type Guard interface {
	Pause(ctx context.Context, p budgetguard.Pause) error
	ResumeAll(ctx context.Context) (int, error)
	Status(ctx context.Context) ([]budgetguard.State, error)
}

// ActionEvent announces a pause or resume decision.
type ActionEvent struct {
	Action       string               `json:"action"`
	Level        policy.Level         `json:"level,omitempty"`
	Targets      []budgetguard.Target `json:"targets,omitempty"`
	Budget       string               `json:"budget,omitempty"`
	CostAmount   *float64             `json:"cost_amount,omitempty"`
	BudgetAmount *float64             `json:"budget_amount,omitempty"`
	CurrencyCode string               `json:"currency_code,omitempty"`
	CostRatio    float64              `json:"cost_ratio,omitempty"`
	Summary      string               `json:"summary"`
	At           time.Time            `json:"at"`
}

// Monitor handles budget notifications.
type Monitor struct {
	guard     Guard
	publisher messaging.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

// New creates a Monitor. publisher may be nil, in which case decisions are
// only logged.
func New(guard Guard, publisher messaging.Publisher, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{guard: guard, publisher: publisher, logger: logger, now: time.Now}
}

// HandleMessage is the JetStream handler for billing.budget.alerts.
// Undecodable notifications are terminated; guard failures are redelivered.
func (m *Monitor) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	obj, err := httputil.DecodeObject(msg.Data)
	if err != nil {
		return messaging.Terminal(fmt.Errorf("decode budget notification: %w", err))
	}
	_, err = m.Handle(ctx, policy.ParseNotification(obj))
	return err
}

// Handle applies the policy to n, stores any pauses and announces the
// decision.
func (m *Monitor) Handle(ctx context.Context, n policy.Notification) (policy.Decision, error) {
	d := policy.Decide(n)
	metrics.NotificationsTotal.WithLabelValues(string(d.Level)).Inc()
	if n.BudgetDisplayName != "" {
		metrics.CostRatio.WithLabelValues(n.BudgetDisplayName).Set(d.Ratio)
	}

	attrs := []any{logging.Budget(n.BudgetDisplayName), logging.CostRatio(d.Ratio), "currency", n.CurrencyCode}
	switch d.Level {
	case policy.LevelCritical:
		m.logger.ErrorContext(ctx, "CRITICAL: "+d.Summary, attrs...)
	case policy.LevelWarning:
		m.logger.WarnContext(ctx, d.Summary, attrs...)
	default:
		m.logger.InfoContext(ctx, d.Summary, attrs...)
	}

	now := m.now().UTC()
	for _, target := range d.Pause {
		err := m.guard.Pause(ctx, budgetguard.Pause{
			Target:    target,
			Reason:    d.Summary,
			Budget:    n.BudgetDisplayName,
			CostRatio: d.Ratio,
			PausedAt:  now,
		})
		if err != nil {
			return d, fmt.Errorf("pause %s: %w", target, err)
		}
		metrics.PausesTotal.WithLabelValues(string(target)).Inc()
	}

	action := ActionNone
	if len(d.Pause) > 0 {
		action = ActionPause
	}
	m.announce(ctx, ActionEvent{
		Action:       action,
		Level:        d.Level,
		Targets:      d.Pause,
		Budget:       n.BudgetDisplayName,
		CostAmount:   n.CostAmount,
		BudgetAmount: n.BudgetAmount,
		CurrencyCode: n.CurrencyCode,
		CostRatio:    d.Ratio,
		Summary:      d.Summary,
		At:           now,
	})
	return d, nil
}

// ResumeAll lifts every pause. It runs when the billing period rolls over.
func (m *Monitor) ResumeAll(ctx context.Context) (int, error) {
	n, err := m.guard.ResumeAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume all: %w", err)
	}
	metrics.ResumesTotal.Add(float64(n))
	m.logger.InfoContext(ctx, "budget pauses lifted", "resumed", n)

	if n > 0 {
		m.announce(ctx, ActionEvent{
			Action:  ActionResume,
			Targets: budgetguard.Targets,
			Summary: fmt.Sprintf("billing period reset: resumed %d paused targets", n),
			At:      m.now().UTC(),
		})
	}
	return n, nil
}

// Status reports the pause state of every target.
func (m *Monitor) Status(ctx context.Context) ([]budgetguard.State, error) {
	return m.guard.Status(ctx)
}

// announce publishes ev. The pause is already stored, so a failed
// announcement is only logged.
func (m *Monitor) announce(ctx context.Context, ev ActionEvent) {
	if m.publisher == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to encode budget action", logging.Error(err))
		return
	}
	if err := m.publisher.Publish(ctx, messaging.SubjectBudgetActions, data); err != nil {
		m.logger.WarnContext(ctx, "failed to publish budget action",
			logging.Subject(messaging.SubjectBudgetActions),
			logging.Error(err))
	}
}
