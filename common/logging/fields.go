package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService      = "service"
	FieldRequestID    = "request_id"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldSubmissionID = "submission_id"
	FieldZipCode      = "location_zip_code"
	FieldOutcome      = "outcome"
	FieldSubject      = "subject"
	FieldTable        = "table"
	FieldBudget       = "budget"
	FieldCostRatio    = "cost_ratio"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error. A nil error logs as empty.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// SubmissionID returns a slog attribute for the server-assigned submission ID.
func SubmissionID(id string) slog.Attr {
	return slog.String(FieldSubmissionID, id)
}

// ZipCode returns a slog attribute for a submitted postal code.
func ZipCode(zip string) slog.Attr {
	return slog.String(FieldZipCode, zip)
}

// Outcome returns a slog attribute for a pipeline outcome (stored, rejected).
func Outcome(outcome string) slog.Attr {
	return slog.String(FieldOutcome, outcome)
}

// Subject returns a slog attribute for a message subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Table returns a slog attribute for a storage table identifier.
func Table(table string) slog.Attr {
	return slog.String(FieldTable, table)
}

// Budget returns a slog attribute for a billing budget name.
func Budget(name string) slog.Attr {
	return slog.String(FieldBudget, name)
}

// CostRatio returns a slog attribute for spend as a fraction of budget.
func CostRatio(ratio float64) slog.Attr {
	return slog.Float64(FieldCostRatio, ratio)
}
