// Package pipeline turns one raw submission into one stored row or one
// itemized rejection.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crnapay/crnapay-stack/common/httputil"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/pkg/coerce"
	"github.com/crnapay/crnapay-stack/core/pkg/evaluation"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// ErrMalformedEnvelope marks input that could not be decoded into a
// submission object. Redelivering it cannot help.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Status is the expected result of processing a submission.
type Status string

const (
	StatusStored   Status = "stored"
	StatusRejected Status = "rejected"
	// StatusAccepted is returned by Evaluate, which never writes.
	StatusAccepted Status = "accepted"
)

// Outcome is the result of a pipeline run that did not hit an
// infrastructure fault.
type Outcome struct {
	Status       Status          `json:"status"`
	SubmissionID string          `json:"submission_id,omitempty"`
	Errors       []string        `json:"errors,omitempty"`
	Row          *submission.Row `json:"row,omitempty"`
}

// RowWriter persists one projected row. A failed insert returns an error.
type RowWriter interface {
	InsertRow(ctx context.Context, table string, row submission.Row) error
}

// Pipeline runs validation, enrichment, projection and the insert.
type Pipeline struct {
	eval     *evaluation.Evaluator
	writer   RowWriter
	table    string
	logger   *logging.Logger
}

// New creates a pipeline. geocoder may be nil, in which case location fields
// are never derived. writer may be nil for pipelines that only Evaluate.
func New(geocoder geocode.Geocoder, writer RowWriter, table string, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		eval:     evaluation.New(geocoder, logger),
		writer:   writer,
		table:    table,
		logger:   logger,
	}
}

// Table returns the destination table identifier.
func (p *Pipeline) Table() string {
	return p.table
}

// Evaluate validates, enriches and projects raw without writing it.
func (p *Pipeline) Evaluate(ctx context.Context, raw submission.Raw) Outcome {
	res := p.eval.Evaluate(ctx, raw)
	if !res.Accepted() {
		return Outcome{Status: StatusRejected, SubmissionID: res.SubmissionID, Errors: res.Errors}
	}
	return Outcome{Status: StatusAccepted, SubmissionID: res.SubmissionID, Row: res.Row}
}

// Process runs the full pipeline. Rejections are reported in the Outcome;
// the returned error is reserved for infrastructure faults such as a failed
// insert.
func (p *Pipeline) Process(ctx context.Context, raw submission.Raw) (Outcome, error) {
	out := p.Evaluate(ctx, raw)
	logger := p.logger.WithContext(ctx).With(logging.SubmissionID(out.SubmissionID))

	if out.Status == StatusRejected {
		logger.Info("submission rejected",
			logging.Outcome(string(StatusRejected)),
			"errors", out.Errors)
		return out, nil
	}

	if p.writer == nil {
		return Outcome{}, errors.New("pipeline has no row writer")
	}
	if err := p.writer.InsertRow(ctx, p.table, *out.Row); err != nil {
		logger.Error("row insert failed", logging.Table(p.table), logging.Error(err))
		return Outcome{}, fmt.Errorf("insert %s into %s: %w", out.SubmissionID, p.table, err)
	}

	out.Status = StatusStored
	logger.Info("submission stored", logging.Outcome(string(StatusStored)), logging.Table(p.table))
	return out, nil
}

// ProcessMessage decodes a JSON submission object and processes it.
func (p *Pipeline) ProcessMessage(ctx context.Context, data []byte) (Outcome, error) {
	raw, err := Decode(data)
	if err != nil {
		return Outcome{}, err
	}
	return p.Process(ctx, raw)
}

// Decode parses data as one JSON submission object.
func Decode(data []byte) (submission.Raw, error) {
	obj, err := httputil.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	return submission.Raw(obj), nil
}

// PushEnvelope is the body of a Pub/Sub push delivery.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription    string `json:"subscription"`
	DeliveryAttempt any    `json:"deliveryAttempt,omitempty"`
}

// Attempt returns the delivery attempt Pub/Sub reports when the subscription
// has a dead-letter policy, or nil.
func (e *PushEnvelope) Attempt() *int {
	return coerce.IntOrNil("deliveryAttempt", e.DeliveryAttempt)
}

// DecodePush unwraps a Pub/Sub push envelope whose message data is a
// base64-encoded JSON submission.
func DecodePush(body []byte) (submission.Raw, *PushEnvelope, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: push envelope: %w", ErrMalformedEnvelope, err)
	}
	if env.Message.Data == "" {
		return nil, &env, fmt.Errorf("%w: push envelope has no message data", ErrMalformedEnvelope)
	}

	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, &env, fmt.Errorf("%w: message data: %w", ErrMalformedEnvelope, err)
	}

	raw, err := Decode(data)
	if err != nil {
		return nil, &env, err
	}
	return raw, &env, nil
}
