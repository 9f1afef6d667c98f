package seeder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crnapay/crnapay-stack/cli/internal/client"
)

// Submitter sends one submission to ingest.
type Submitter interface {
	SubmitJSON(ctx context.Context, v any) (*client.Receipt, error)
}

// Summary counts seeding results. Rejected counts submissions ingest
// refused as invalid; Failed counts transport and server errors.
type Summary struct {
	Sent          int           `json:"sent" yaml:"sent"`
	Accepted      int           `json:"accepted" yaml:"accepted"`
	Rejected      int           `json:"rejected" yaml:"rejected"`
	Failed        int           `json:"failed" yaml:"failed"`
	MeantInvalid  int           `json:"meant_invalid" yaml:"meant_invalid"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	SubmissionIDs []string      `json:"-" yaml:"-"`
}

// Runner handles the seeding execution
type Runner struct {
	Config    *Config
	Submitter Submitter
	Logger    *slog.Logger
}

// NewRunner creates a runner posting to the configured ingest URL.
func NewRunner(config *Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Config:    config,
		Submitter: client.NewIngestClient(config.Defaults.IngestURL),
		Logger:    logger,
	}
}

type job struct {
	sub     map[string]any
	invalid bool
}

type result struct {
	id      string
	invalid bool
	err     error
}

// Run generates Count submissions and posts them with Concurrency workers.
// It stops early when ctx is cancelled and reports what was sent.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	d := r.Config.Defaults
	gen := NewGenerator(d.Seed, r.Config.Mix, d.InvalidRatio, d.DataSource)
	start := time.Now()

	r.Logger.Info("starting seeder",
		slog.String("ingest_url", d.IngestURL),
		slog.Int("count", d.Count),
		slog.Int("concurrency", d.Concurrency),
		slog.Float64("invalid_ratio", d.InvalidRatio))

	jobs := make(chan job)
	results := make(chan result)

	var wg sync.WaitGroup
	for range d.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				receipt, err := r.Submitter.SubmitJSON(ctx, j.sub)
				res := result{invalid: j.invalid, err: err}
				if receipt != nil {
					res.id = receipt.SubmissionID
				}
				results <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < d.Count; i++ {
			sub, invalid := gen.Next()
			select {
			case jobs <- job{sub: sub, invalid: invalid}:
			case <-ctx.Done():
				return
			}
			if d.Interval > 0 && i < d.Count-1 {
				select {
				case <-time.After(d.Interval):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var summary Summary
	progressEvery := max(d.Count/10, 1)
	for res := range results {
		summary.Sent++
		if res.invalid {
			summary.MeantInvalid++
		}
		switch {
		case res.err == nil:
			summary.Accepted++
			summary.SubmissionIDs = append(summary.SubmissionIDs, res.id)
		case errors.Is(res.err, client.ErrRejected):
			summary.Rejected++
		default:
			summary.Failed++
			r.Logger.Warn("submission failed", slog.String("error", res.err.Error()))
		}
		if summary.Sent%progressEvery == 0 {
			r.Logger.Info("progress", slog.Int("sent", summary.Sent), slog.Int("count", d.Count))
		}
	}
	summary.Duration = time.Since(start)

	r.Logger.Info("seeding complete",
		slog.Int("accepted", summary.Accepted),
		slog.Int("rejected", summary.Rejected),
		slog.Int("failed", summary.Failed))

	return summary, ctx.Err()
}
