// Package storage implements pipeline.RowWriter for the supported backends.
package storage

import (
	"fmt"
	"strings"
)

// Backend names accepted in configuration.
const (
	BackendBigQuery   = "bigquery"
	BackendPostgres   = "postgres"
	BackendOpenSearch = "opensearch"
)

// InsertError reports a rejected row insert. Errors is never empty.
type InsertError struct {
	Table  string
	Errors []string
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s failed: %s", e.Table, strings.Join(e.Errors, "; "))
}

func newInsertError(table string, errs ...string) *InsertError {
	if len(errs) == 0 {
		errs = []string{"unknown error"}
	}
	return &InsertError{Table: table, Errors: errs}
}
