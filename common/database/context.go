// Package database bounds storage calls with per-operation deadlines so a
// stalled sink fails the delivery instead of holding it until redelivery.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds reads and health checks.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single row insert. It is well under the
	// JetStream ack wait, so a timed-out insert is Nak'd before the server
	// redelivers on its own.
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext derives a context with DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context with DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}
