package messaging

// Subjects on the crnapay message bus follow {domain}.{resource}.{action}.
const (
	// SubjectSubmissionsReceived carries stamped raw submissions from ingest
	// to the core processor.
	SubjectSubmissionsReceived = "submissions.received"

	// SubjectSubmissionsDLQ prefixes dead-lettered submissions; the final
	// token is the reason (rejected, malformed, insert_failed).
	SubjectSubmissionsDLQ = "submissions.dlq"

	// SubjectBudgetAlerts carries Cloud Billing budget notifications.
	SubjectBudgetAlerts = "billing.budget.alerts"

	// SubjectBudgetActions announces pause and resume decisions.
	SubjectBudgetActions = "ops.budget.actions"
)

// Durable consumer names.
const (
	ConsumerCoreProcessor = "core-processor"
	ConsumerBudgetMonitor = "budget-monitor"
)

// DLQ reasons.
const (
	DLQReasonRejected     = "rejected"
	DLQReasonMalformed    = "malformed"
	DLQReasonInsertFailed = "insert_failed"
	DLQReasonPaused       = "paused"
)

// DLQSubject returns the dead-letter subject for reason.
// Example: submissions.dlq.rejected
func DLQSubject(reason string) string {
	return SubjectSubmissionsDLQ + "." + reason
}

// DLQWildcard matches every dead-letter subject.
const DLQWildcard = SubjectSubmissionsDLQ + ".>"
