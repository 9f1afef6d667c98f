// Package dryrun runs submissions through validation, enrichment and
// projection without queueing or storing them.
package dryrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/evaluation"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Result statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Result is the dry-run outcome for one submission.
type Result struct {
	Index        int            `json:"index" yaml:"index"`
	SubmissionID string         `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	Status       string         `json:"status" yaml:"status"`
	Errors       []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Row          map[string]any `json:"row,omitempty" yaml:"row,omitempty"`
}

// Evaluator performs dry runs.
type Evaluator struct {
	eval   *evaluation.Evaluator
	stamp  bool
	now    func() time.Time
	newID  func() (uuid.UUID, error)
}

// New creates an Evaluator. geocoder may be nil. When stamp is set, missing
// server fields are filled the way ingest fills them so client-shaped
// records can be checked.
func New(geocoder geocode.Geocoder, stamp bool, logger *logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Evaluator{
		eval:   evaluation.New(geocoder, logger),
		stamp:  stamp,
		now:    time.Now,
		newID:  uuid.NewV7,
	}
}

// Evaluate validates raw and, when accepted, enriches and projects it.
func (e *Evaluator) Evaluate(ctx context.Context, index int, raw submission.Raw) (Result, error) {
	raw = raw.Clone()
	if e.stamp {
		if err := e.stampServerFields(raw); err != nil {
			return Result{}, err
		}
	}

	ev := e.eval.Evaluate(ctx, raw)
	res := Result{Index: index, SubmissionID: ev.SubmissionID}
	if !ev.Accepted() {
		res.Status = StatusRejected
		res.Errors = ev.Errors
		return res, nil
	}
	res.Status = StatusAccepted
	res.Row = ev.Row.Values()
	return res, nil
}

// EvaluateAll evaluates every submission in order.
func (e *Evaluator) EvaluateAll(ctx context.Context, raws []submission.Raw) ([]Result, error) {
	out := make([]Result, 0, len(raws))
	for i, raw := range raws {
		res, err := e.Evaluate(ctx, i, raw)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (e *Evaluator) stampServerFields(raw submission.Raw) error {
	if coerce.IsBlank(raw.Get(submission.FieldSubmissionID)) {
		id, err := e.newID()
		if err != nil {
			return fmt.Errorf("generate submission id: %w", err)
		}
		raw[submission.FieldSubmissionID] = id.String()
	}
	if coerce.IsBlank(raw.Get(submission.FieldSubmissionTimestamp)) {
		raw[submission.FieldSubmissionTimestamp] = e.now().UTC().Format(time.RFC3339Nano)
	}
	return nil
}

// Parse reads submissions from data: a single JSON object, a JSON array of
// objects, or newline-delimited objects. Numbers are kept as json.Number.
func Parse(data []byte) ([]submission.Raw, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("no submissions found")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var objs []map[string]any
		if err := dec.Decode(&objs); err != nil {
			return nil, fmt.Errorf("decode submission array: %w", err)
		}
		out := make([]submission.Raw, 0, len(objs))
		for i, obj := range objs {
			if obj == nil {
				return nil, fmt.Errorf("element %d is not a JSON object", i)
			}
			out = append(out, submission.Raw(obj))
		}
		return out, nil
	}

	var out []submission.Raw
	for {
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode submission %d: %w", len(out), err)
		}
		if obj == nil {
			return nil, fmt.Errorf("submission %d is not a JSON object", len(out))
		}
		out = append(out, submission.Raw(obj))
	}
	return out, nil
}
