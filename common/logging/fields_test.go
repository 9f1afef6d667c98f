package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"service", Service("ingest"), FieldService, "ingest"},
		{"method", Method("POST"), FieldMethod, "POST"},
		{"path", Path("/submit-crna-compensation"), FieldPath, "/submit-crna-compensation"},
		{"status", Status(202), FieldStatus, "202"},
		{"duration", Duration(15), FieldDuration, "15"},
		{"error", Error(errors.New("boom")), FieldError, "boom"},
		{"nil error", Error(nil), FieldError, ""},
		{"submission id", SubmissionID("sub-1"), FieldSubmissionID, "sub-1"},
		{"zip", ZipCode("02134"), FieldZipCode, "02134"},
		{"outcome", Outcome("stored"), FieldOutcome, "stored"},
		{"subject", Subject("submissions.received"), FieldSubject, "submissions.received"},
		{"table", Table("proj.ds.crna"), FieldTable, "proj.ds.crna"},
		{"budget", Budget("crna-monthly"), FieldBudget, "crna-monthly"},
		{"cost ratio", CostRatio(0.5), FieldCostRatio, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.value, tt.attr.Value.String())
		})
	}
}
