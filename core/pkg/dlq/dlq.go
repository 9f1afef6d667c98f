// Package dlq keeps submissions that could not be stored on the
// SUBMISSIONS_DLQ JetStream stream for audit and replay.
//
// Each entry is the original payload. The reason, the error list and the
// failure time travel as headers, so an entry can be republished unchanged.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/crnapay/crnapay-stack/common/messaging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
)

// Stream is the JetStream surface the queue needs.
type Stream interface {
	PublishMsg(ctx context.Context, msg *messaging.Message) error
	ReadStream(ctx context.Context, streamName string, limit int) ([]*messaging.Message, error)
	PurgeStream(ctx context.Context, streamName, subject string) error
	StreamStats(ctx context.Context, streamName string) (natsclient.StreamStats, error)
}

// Entry is one dead-lettered submission.
type Entry struct {
	Sequence     uint64    `json:"sequence" yaml:"sequence"`
	Reason       string    `json:"reason" yaml:"reason"`
	SubmissionID string    `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	Errors       []string  `json:"errors,omitempty" yaml:"errors,omitempty"`
	Attempt      uint64    `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	FailedAt     time.Time `json:"failed_at" yaml:"failed_at"`
	Payload      string    `json:"payload" yaml:"payload"`
}

// Stats describes the queue.
type Stats struct {
	Written uint64                 `json:"written" yaml:"written"`
	Stream  natsclient.StreamStats `json:"stream" yaml:"stream"`
}

// Queue writes to and reads from the dead-letter stream.
type Queue struct {
	js      Stream
	stream  string
	logger  *slog.Logger
	written atomic.Uint64
}

// NewQueue creates a queue on the SUBMISSIONS_DLQ stream.
func NewQueue(js Stream, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{js: js, stream: natsclient.SubmissionsDLQStream.Name, logger: logger}
}

// Write dead-letters msg under reason. errs explains the failure.
func (q *Queue) Write(ctx context.Context, reason string, msg *messaging.Message, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal dlq errors: %w", err)
	}

	out := &messaging.Message{
		Subject: messaging.DLQSubject(reason),
		Data:    msg.Data,
		Metadata: map[string]string{
			messaging.HeaderDLQReason:   reason,
			messaging.HeaderDLQErrors:   string(errsJSON),
			messaging.HeaderDLQFailedAt: time.Now().UTC().Format(time.RFC3339Nano),
			messaging.HeaderDLQAttempt:  strconv.FormatUint(msg.Attempt, 10),
		},
	}
	if id := msg.Header(messaging.HeaderSubmissionID); id != "" {
		out.Metadata[messaging.HeaderDLQSubmissionID] = id
	}

	if err := q.js.PublishMsg(ctx, out); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}

	q.written.Add(1)
	q.logger.WarnContext(ctx, "submission dead-lettered",
		slog.String("reason", reason),
		slog.String("submission_id", msg.Header(messaging.HeaderSubmissionID)),
		slog.Int("errors", len(errs)))
	return nil
}

// List returns up to limit entries, oldest first.
func (q *Queue) List(ctx context.Context, limit int) ([]Entry, error) {
	msgs, err := q.js.ReadStream(ctx, q.stream, limit)
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, toEntry(m))
	}
	return entries, nil
}

// Purge removes entries for reason, or every entry when reason is empty.
func (q *Queue) Purge(ctx context.Context, reason string) error {
	subject := ""
	if reason != "" {
		subject = messaging.DLQSubject(reason)
	}
	if err := q.js.PurgeStream(ctx, q.stream, subject); err != nil {
		return fmt.Errorf("purge dlq: %w", err)
	}
	q.logger.InfoContext(ctx, "dlq purged", slog.String("reason", reason))
	return nil
}

// Replay republishes up to limit entries for reason to the submissions
// subject, oldest first. Replayed entries stay on the dead-letter stream
// until purged. A limit of zero or less replays every matching entry.
func (q *Queue) Replay(ctx context.Context, reason string, limit int) (int, error) {
	entries, err := q.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, e := range entries {
		if limit > 0 && replayed >= limit {
			break
		}
		if reason != "" && e.Reason != reason {
			continue
		}

		msg := &messaging.Message{
			Subject:  messaging.SubjectSubmissionsReceived,
			Data:     []byte(e.Payload),
			Metadata: map[string]string{messaging.HeaderContentType: "application/json"},
		}
		if e.SubmissionID != "" {
			msg.Metadata[messaging.HeaderSubmissionID] = e.SubmissionID
		}
		if err := q.js.PublishMsg(ctx, msg); err != nil {
			return replayed, fmt.Errorf("replay dlq entry %d: %w", e.Sequence, err)
		}
		replayed++
	}

	q.logger.InfoContext(ctx, "dlq replayed", slog.String("reason", reason), slog.Int("count", replayed))
	return replayed, nil
}

// Stats returns the number of entries written by this process and the
// stream state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	state, err := q.js.StreamStats(ctx, q.stream)
	if err != nil {
		return Stats{Written: q.written.Load()}, fmt.Errorf("dlq stats: %w", err)
	}
	return Stats{Written: q.written.Load(), Stream: state}, nil
}

func toEntry(m *messaging.Message) Entry {
	e := Entry{
		Sequence:     m.Sequence,
		Reason:       m.Header(messaging.HeaderDLQReason),
		SubmissionID: m.Header(messaging.HeaderDLQSubmissionID),
		FailedAt:     m.Timestamp,
		Payload:      string(m.Data),
	}
	if raw := m.Header(messaging.HeaderDLQErrors); raw != "" {
		_ = json.Unmarshal([]byte(raw), &e.Errors)
	}
	if raw := m.Header(messaging.HeaderDLQFailedAt); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			e.FailedAt = t
		}
	}
	if raw := m.Header(messaging.HeaderDLQAttempt); raw != "" {
		e.Attempt, _ = strconv.ParseUint(raw, 10, 64)
	}
	return e
}
