package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextDeadlines(t *testing.T) {
	tests := []struct {
		name    string
		derive  func(context.Context) (context.Context, context.CancelFunc)
		timeout time.Duration
	}{
		{name: "query", derive: QueryContext, timeout: DefaultQueryTimeout},
		{name: "write", derive: WriteContext, timeout: DefaultWriteTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.derive(context.Background())
			defer cancel()

			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(tt.timeout), deadline, time.Second)
		})
	}
}

func TestContext_ParentDeadlineWins(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, cancelWrite := WriteContext(parent)
	defer cancelWrite()

	deadline, _ := ctx.Deadline()
	parentDeadline, _ := parent.Deadline()
	assert.Equal(t, parentDeadline, deadline)
}

func TestContext_Cancel(t *testing.T) {
	ctx, cancel := QueryContext(context.Background())
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
