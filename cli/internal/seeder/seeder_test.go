package seeder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/cli/internal/client"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
	"github.com/crnapay/crnapay-stack/core/pkg/validation"
)

func stamp(sub map[string]any) submission.Raw {
	raw := submission.Raw(sub).Clone()
	raw[submission.FieldSubmissionID] = "0192f0c4-0000-7000-8000-000000000001"
	raw[submission.FieldSubmissionTimestamp] = "2026-10-15T12:00:00Z"
	return raw
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Defaults.IngestURL, "falls back to the CLI profile")
	assert.Equal(t, 100, cfg.Defaults.Count)
	assert.Equal(t, 4, cfg.Defaults.Concurrency)
	assert.Equal(t, "seeder", cfg.Defaults.DataSource)
	assert.InDelta(t, 0.55, cfg.Mix[submission.EmploymentW2], 1e-9)
	assert.InDelta(t, 0.3, cfg.Mix[submission.EmploymentContractor], 1e-9)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  count: 25
  invalid_ratio: 0.2
mix:
  "1099/Contractor": 1
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Defaults.Count)
	assert.InDelta(t, 0.2, cfg.Defaults.InvalidRatio, 1e-9)
	assert.Equal(t, map[string]float64{submission.EmploymentContractor: 1}, cfg.Mix)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Defaults: DefaultsConfig{Count: 10, Concurrency: 2}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero count", mutate: func(c *Config) { c.Defaults.Count = 0 }, wantErr: "count must be at least 1"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Defaults.Concurrency = 0 }, wantErr: "concurrency must be at least 1"},
		{name: "ratio above one", mutate: func(c *Config) { c.Defaults.InvalidRatio = 1.5 }, wantErr: "invalid_ratio"},
		{name: "unknown employment", mutate: func(c *Config) { c.Mix = map[string]float64{"volunteer": 1} }, wantErr: "unknown employment type"},
		{name: "negative weight", mutate: func(c *Config) { c.Mix = map[string]float64{"w2": -1} }, wantErr: "negative weight"},
		{name: "zero weights", mutate: func(c *Config) { c.Mix = map[string]float64{"w2": 0} }, wantErr: "sum to zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGenerator_ValidSubmissionsPassValidation(t *testing.T) {
	gen := NewGenerator(42, nil, 0, "seeder")

	for i := 0; i < 500; i++ {
		sub := gen.Valid()
		assert.NotContains(t, sub, submission.FieldSubmissionID)
		assert.Equal(t, "seeder", sub[submission.FieldDataSource])

		result := validation.Validate(stamp(sub))
		require.True(t, result.Accepted(), "submission %d: %v -> %v", i, sub, result.Errors)
	}
}

func TestGenerator_CorruptedSubmissionsFailValidation(t *testing.T) {
	gen := NewGenerator(7, nil, 0, "")

	for i := 0; i < 200; i++ {
		sub := gen.Valid()
		gen.Corrupt(sub)

		result := validation.Validate(stamp(sub))
		require.False(t, result.Accepted(), "submission %d should be rejected: %v", i, sub)
	}
}

func TestGenerator_SameSeedSameOutput(t *testing.T) {
	a := NewGenerator(99, nil, 0.5, "x")
	b := NewGenerator(99, nil, 0.5, "x")

	for range 20 {
		subA, invalidA := a.Next()
		subB, invalidB := b.Next()
		assert.Equal(t, subA, subB)
		assert.Equal(t, invalidA, invalidB)
	}
}

func TestGenerator_Mix(t *testing.T) {
	gen := NewGenerator(1, map[string]float64{submission.EmploymentContractor: 1, submission.EmploymentW2: 0}, 0, "")

	for range 50 {
		sub := gen.Valid()
		assert.Equal(t, submission.EmploymentContractor, sub[submission.FieldEmploymentType])
		assert.Contains(t, sub, submission.FieldHourlyRate1099)
	}
}

type fakeSubmitter struct {
	mu    sync.Mutex
	seen  []map[string]any
	calls atomic.Int64
	err   error
}

func (f *fakeSubmitter) SubmitJSON(_ context.Context, v any) (*client.Receipt, error) {
	n := f.calls.Add(1)
	sub := v.(map[string]any)
	f.mu.Lock()
	f.seen = append(f.seen, sub)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if !validation.Validate(stamp(sub)).Accepted() {
		return nil, &client.APIError{StatusCode: 400, Message: "Submission failed validation", Details: []string{"bad"}}
	}
	return &client.Receipt{SubmissionID: string(rune('a' + n%26))}, nil
}

func newTestRunner(sub Submitter, count int, invalidRatio float64) *Runner {
	return &Runner{
		Config: &Config{Defaults: DefaultsConfig{
			Count:        count,
			Concurrency:  3,
			InvalidRatio: invalidRatio,
			Seed:         5,
		}},
		Submitter: sub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunner_Run(t *testing.T) {
	sub := &fakeSubmitter{}
	summary, err := newTestRunner(sub, 40, 0.25).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 40, summary.Sent)
	assert.Equal(t, 40, summary.Accepted+summary.Rejected)
	assert.Equal(t, summary.MeantInvalid, summary.Rejected)
	assert.Zero(t, summary.Failed)
	assert.Len(t, summary.SubmissionIDs, summary.Accepted)
	assert.Len(t, sub.seen, 40)
}

func TestRunner_TransportFailures(t *testing.T) {
	sub := &fakeSubmitter{err: io.ErrUnexpectedEOF}
	summary, err := newTestRunner(sub, 10, 0).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Failed)
	assert.Zero(t, summary.Accepted)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestRunner(&fakeSubmitter{}, 1000, 0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Sent, 1000)
}
