package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/client"
	"github.com/crnapay/crnapay-stack/cli/internal/dryrun"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
)

// Submit result statuses.
const (
	submitQueued   = "queued"
	submitRejected = "rejected"
	submitFailed   = "failed"
)

type submitResult struct {
	Index        int      `json:"index" yaml:"index"`
	SubmissionID string   `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	Status       string   `json:"status" yaml:"status"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
	Details      []string `json:"details,omitempty" yaml:"details,omitempty"`
}

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Send submissions to the ingest service",
	Long: `Post each submission in the file to the ingest service. The file holds
one JSON object, a JSON array of objects, or newline-delimited objects;
"-" reads standard input.`,
	Example: `  crnactl submit submission.json
  crnactl submit --ingest-url https://ingest.example.com batch.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := printer(cmd)

	prof, err := currentProfile(cmd)
	if err != nil {
		return err
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	raws, err := dryrun.Parse(data)
	if err != nil {
		return err
	}

	ingest := client.NewIngestClient(prof.IngestURL)
	results := make([]submitResult, 0, len(raws))
	failures := 0

	for i, raw := range raws {
		res := submitResult{Index: i}
		receipt, err := ingest.SubmitJSON(ctx, raw)
		switch {
		case err == nil:
			res.Status = submitQueued
			res.SubmissionID = receipt.SubmissionID
		default:
			failures++
			res.Status = submitFailed
			if errors.Is(err, client.ErrRejected) {
				res.Status = submitRejected
			}
			res.Error = err.Error()
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				res.Details = apiErr.Details
			}
		}
		results = append(results, res)
	}

	err = p.Print(results, func() *output.Table {
		t := output.NewTable("#", "SUBMISSION ID", "STATUS", "ERROR")
		for _, r := range results {
			t.AddRow(strconv.Itoa(r.Index), r.SubmissionID, r.Status, r.Error)
		}
		return t
	})
	if err != nil {
		return err
	}

	if p.Format() == output.FormatTable {
		for _, r := range results {
			for _, d := range r.Details {
				p.Warn("#%d %s", r.Index, d)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d submission(s) not queued", failures, len(results))
	}
	if p.Format() == output.FormatTable {
		p.Success("%d submission(s) queued", len(results))
	}
	return nil
}
