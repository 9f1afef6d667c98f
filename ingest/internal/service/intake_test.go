package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/common/messaging"
	"github.com/crnapay/crnapay-stack/common/middleware"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

type mockPublisher struct {
	mu   sync.Mutex
	msgs []*messaging.Message
	err  error
}

func (m *mockPublisher) PublishMsg(_ context.Context, msg *messaging.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

type mockGuard struct {
	err error
}

func (g mockGuard) Check(context.Context, budgetguard.Target) error { return g.err }

var (
	fixedID   = uuid.MustParse("0192a6a4-7c1e-7c3a-9f7e-2d3c4b5a6f70")
	fixedTime = time.Date(2025, 5, 20, 14, 3, 11, 123456000, time.UTC)
)

func newTestService(pub *mockPublisher, opts ...Option) *IntakeService {
	s := NewIntakeService(pub, "user_submission", logging.Discard(), opts...)
	s.now = func() time.Time { return fixedTime }
	s.newID = func() (uuid.UUID, error) { return fixedID, nil }
	return s
}

func validRaw() submission.Raw {
	return submission.Raw{
		"years_experience":   json.Number("7"),
		"location_zip_code":  "02134",
		"employment_type":    "W2",
		"work_setting":       "ASC",
		"base_salary_annual": json.Number("185000.50"),
	}
}

func TestSubmit_Queued(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestService(pub)
	ctx := middleware.WithRequestID(context.Background(), "req-1")

	receipt, err := s.Submit(ctx, validRaw(), 120)
	require.NoError(t, err)

	assert.Equal(t, fixedID.String(), receipt.SubmissionID)
	assert.Equal(t, fixedTime, receipt.ReceivedAt)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, messaging.SubjectSubmissionsReceived, msg.Subject)
	assert.Equal(t, fixedID.String(), msg.Header(messaging.HeaderSubmissionID))
	assert.Equal(t, "req-1", msg.Header(messaging.HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, fixedID.String(), body["submission_id_server"])
	assert.Equal(t, "2025-05-20T14:03:11.123456Z", body["submission_timestamp_server"])
	assert.Equal(t, "user_submission", body["data_source"])
	assert.Equal(t, 185000.50, body["base_salary_annual"])

	stats := s.GetStats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(120), stats.TotalBytes)
}

func TestSubmit_OverwritesServerFieldsKeepsDataSource(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestService(pub)

	raw := validRaw()
	raw["submission_id_server"] = "client-chosen"
	raw["submission_timestamp_server"] = "1999-01-01T00:00:00Z"
	raw["data_source"] = "partner_feed"

	_, err := s.Submit(context.Background(), raw, 0)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &body))
	assert.Equal(t, fixedID.String(), body["submission_id_server"])
	assert.Equal(t, "2025-05-20T14:03:11.123456Z", body["submission_timestamp_server"])
	assert.Equal(t, "partner_feed", body["data_source"])
}

func TestSubmit_Rejected(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestService(pub)

	raw := validRaw()
	delete(raw, "work_setting")
	raw["years_experience"] = json.Number("75")

	_, err := s.Submit(context.Background(), raw, 0)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"Missing or empty required user field: work_setting.",
		"years_experience (75) out of range (0-60).",
	}, verr.Errors)
	assert.Empty(t, pub.msgs)
	assert.Equal(t, int64(1), s.GetStats().Rejected)
}

func TestSubmit_PreValidationDisabled(t *testing.T) {
	pub := &mockPublisher{}
	s := newTestService(pub, WithPreValidation(false))

	_, err := s.Submit(context.Background(), submission.Raw{"comments": "partial"}, 0)
	require.NoError(t, err)
	assert.Len(t, pub.msgs, 1)
}

func TestSubmit_Guard(t *testing.T) {
	tests := []struct {
		name       string
		guardErr   error
		wantPaused bool
	}{
		{name: "not paused"},
		{name: "paused", guardErr: fmt.Errorf("%w: ingest", budgetguard.ErrPaused), wantPaused: true},
		{name: "guard unavailable fails open", guardErr: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			s := newTestService(pub, WithGuard(mockGuard{err: tt.guardErr}))

			_, err := s.Submit(context.Background(), validRaw(), 0)
			if tt.wantPaused {
				assert.ErrorIs(t, err, budgetguard.ErrPaused)
				assert.Empty(t, pub.msgs)
				return
			}
			require.NoError(t, err)
			assert.Len(t, pub.msgs, 1)
		})
	}
}

func TestSubmit_PublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats: timeout")}
	s := newTestService(pub)

	_, err := s.Submit(context.Background(), validRaw(), 0)
	assert.ErrorContains(t, err, "nats: timeout")
	assert.Equal(t, int64(1), s.GetStats().Failed)
}
