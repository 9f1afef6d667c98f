// Package messaging provides abstractions for message broker communication.
// Services publish and consume through these types without depending on the
// broker implementation in messaging/nats.
package messaging

import (
	"context"
	"errors"
	"time"
)

// Header names carried on broker messages.
const (
	HeaderSubmissionID = "Crnapay-Submission-Id"
	HeaderRequestID    = "Crnapay-Request-Id"
	HeaderContentType  = "Content-Type"

	// Dead-letter annotations. HeaderDLQErrors holds a JSON array of strings.
	HeaderDLQReason   = "Crnapay-Dlq-Reason"
	HeaderDLQErrors   = "Crnapay-Dlq-Errors"
	HeaderDLQFailedAt = "Crnapay-Dlq-Failed-At"
	HeaderDLQAttempt  = "Crnapay-Dlq-Attempt"

	// HeaderDLQSubmissionID carries the submission ID on dead-letter copies.
	// It differs from HeaderSubmissionID so the copy does not collide with
	// the original in the stream duplicate window.
	HeaderDLQSubmissionID = "Crnapay-Dlq-Submission-Id"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains message headers.
	Metadata map[string]string

	// Timestamp is when the broker stored the message, or when it was
	// received if the broker does not record one.
	Timestamp time.Time

	// Attempt is the 1-based delivery count for durable consumers.
	Attempt uint64

	// Sequence is the stream sequence for messages read back from a stream.
	Sequence uint64
}

// Header returns the named header, or "".
func (m *Message) Header(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// MessageHandler processes a received message. A nil return acknowledges the
// message; an error asks for redelivery unless it is marked Terminal.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with headers.
	PublishMsg(ctx context.Context, msg *Message) error
}

// ErrTerminal marks a handler failure that redelivery cannot fix.
var ErrTerminal = errors.New("terminal message failure")

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }

func (e *terminalError) Unwrap() []error { return []error{ErrTerminal, e.err} }

// Terminal wraps err so consumers stop redelivering the message. The original
// error stays reachable through errors.Is and errors.As.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was marked with Terminal.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal)
}
