// Package evaluation runs one raw submission through validation, enrichment
// and projection. Every entry point that judges a submission goes through
// Evaluate, so the rules cannot drift between them.
package evaluation

import (
	"context"

	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/enrichment"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/projection"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
	"github.com/crnapay/crnapay-stack/core/pkg/validation"
)

// Result is either an accepted row or a list of validation errors.
type Result struct {
	SubmissionID string
	Errors       []string
	Row          *submission.Row
}

// Accepted reports whether the submission passed validation.
func (r Result) Accepted() bool {
	return r.Row != nil
}

// Evaluator holds the enrichment engine shared across evaluations. It is
// safe for concurrent use.
type Evaluator struct {
	enricher *enrichment.Engine
}

// New creates an Evaluator. geocoder may be nil, in which case location
// fields are never derived.
func New(geocoder geocode.Geocoder, logger *logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{enricher: enrichment.New(geocoder, logger)}
}

// Evaluate validates raw and, when it is accepted, enriches and projects it.
func (e *Evaluator) Evaluate(ctx context.Context, raw submission.Raw) Result {
	res := Result{SubmissionID: SubmissionID(raw)}

	v := validation.Validate(raw)
	if !v.Accepted() {
		res.Errors = v.Errors
		return res
	}

	row := projection.Project(e.enricher.Enrich(ctx, v.Submission))
	res.Row = &row
	return res
}

// SubmissionID returns the server-assigned ID as the row will store it.
func SubmissionID(raw submission.Raw) string {
	return coerce.Text(raw.Get(submission.FieldSubmissionID))
}
