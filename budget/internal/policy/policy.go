// Package policy turns a billing budget notification into pause decisions.
package policy

import (
	"fmt"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
)

// Thresholds are fractions of the budget amount.
const (
	CriticalThreshold = 1.0
	WarningThreshold  = 0.9
)

// Level grades a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Notification is a Cloud Billing budget notification. Numeric fields are
// nil when absent or unparseable.
type Notification struct {
	BudgetDisplayName      string   `json:"budgetDisplayName"`
	CostAmount             *float64 `json:"costAmount,omitempty"`
	BudgetAmount           *float64 `json:"budgetAmount,omitempty"`
	CurrencyCode           string   `json:"currencyCode,omitempty"`
	AlertThresholdExceeded *float64 `json:"alertThresholdExceeded,omitempty"`
}

// ParseNotification reads the fields the policy needs from a decoded JSON
// object. Numbers may arrive as JSON numbers or strings.
func ParseNotification(obj map[string]any) Notification {
	return Notification{
		BudgetDisplayName:      coerce.Text(obj["budgetDisplayName"]),
		CostAmount:             coerce.FloatOrNil("costAmount", obj["costAmount"]),
		BudgetAmount:           coerce.FloatOrNil("budgetAmount", obj["budgetAmount"]),
		CurrencyCode:           coerce.Text(obj["currencyCode"]),
		AlertThresholdExceeded: coerce.FloatOrNil("alertThresholdExceeded", obj["alertThresholdExceeded"]),
	}
}

// Ratio returns the exceeded threshold, falling back to cost over budget when
// the notification carries no threshold. ok is false when neither is known.
func (n Notification) Ratio() (ratio float64, ok bool) {
	if n.AlertThresholdExceeded != nil {
		return *n.AlertThresholdExceeded, true
	}
	if n.CostAmount != nil && n.BudgetAmount != nil && *n.BudgetAmount > 0 {
		return *n.CostAmount / *n.BudgetAmount, true
	}
	return 0, false
}

// Decision is what the monitor should do about one notification.
type Decision struct {
	Level   Level
	Ratio   float64
	Pause   []budgetguard.Target
	Summary string
}

// Decide applies the pause policy. Thresholds are checked from the highest
// down so a notification over budget is never treated as a warning.
func Decide(n Notification) Decision {
	ratio, ok := n.Ratio()
	if !ok {
		return Decision{Level: LevelInfo, Summary: fmt.Sprintf("budget %q notification carries no cost ratio", n.BudgetDisplayName)}
	}

	d := Decision{Ratio: ratio}
	switch {
	case ratio >= CriticalThreshold:
		d.Level = LevelCritical
		d.Pause = []budgetguard.Target{budgetguard.TargetIngest, budgetguard.TargetCore}
		d.Summary = fmt.Sprintf("budget %q at %.0f%%: pausing intake and processing", n.BudgetDisplayName, ratio*100)
	case ratio >= WarningThreshold:
		d.Level = LevelWarning
		d.Pause = []budgetguard.Target{budgetguard.TargetIngest}
		d.Summary = fmt.Sprintf("budget %q at %.0f%%: pausing intake", n.BudgetDisplayName, ratio*100)
	default:
		d.Level = LevelInfo
		d.Summary = fmt.Sprintf("budget %q at %.0f%%: no action", n.BudgetDisplayName, ratio*100)
	}
	return d
}
