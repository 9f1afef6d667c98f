package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/config"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	"github.com/crnapay/crnapay-stack/common/messaging"
	"github.com/crnapay/crnapay-stack/core/pkg/dlq"
)

// openDLQStream connects to the dead-letter stream. Tests replace it with
// an in-memory stream.
var openDLQStream = func(p *config.Profile, logger *slog.Logger) (dlq.Stream, func(), error) {
	js, err := connectJetStream(p, logger)
	if err != nil {
		return nil, nil, err
	}
	return js, js.Close, nil
}

var dlqReasons = []string{messaging.DLQReasonRejected, messaging.DLQReasonMalformed, messaging.DLQReasonInsertFailed, messaging.DLQReasonPaused}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead-letter queue commands",
	Long:  "Inspect, replay and purge submissions on the SUBMISSIONS_DLQ stream",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered submissions, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		reason, err := dlqReasonFlag(cmd)
		if err != nil {
			return err
		}

		q, closeQueue, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		// Filtering happens after the read, so read everything when a reason
		// is given.
		readLimit := limit
		if reason != "" {
			readLimit = 0
		}
		entries, err := q.List(cmd.Context(), readLimit)
		if err != nil {
			return err
		}
		if reason != "" {
			filtered := entries[:0]
			for _, e := range entries {
				if e.Reason == reason && (limit <= 0 || len(filtered) < limit) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		return printer(cmd).Print(entries, func() *output.Table {
			t := output.NewTable("SEQ", "REASON", "SUBMISSION ID", "ATTEMPT", "FAILED AT", "FIRST ERROR")
			for _, e := range entries {
				first := ""
				if len(e.Errors) > 0 {
					first = e.Errors[0]
				}
				t.AddRow(
					strconv.FormatUint(e.Sequence, 10),
					e.Reason,
					e.SubmissionID,
					strconv.FormatUint(e.Attempt, 10),
					e.FailedAt.Format(time.RFC3339),
					first,
				)
			}
			return t
		})
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead-letter stream statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		stats, err := q.Stats(cmd.Context())
		if err != nil {
			return err
		}

		s := stats.Stream
		return printer(cmd).Print(s, func() *output.Table {
			t := output.NewTable("MESSAGES", "BYTES", "FIRST SEQ", "LAST SEQ", "OLDEST")
			oldest := ""
			if !s.FirstTime.IsZero() {
				oldest = s.FirstTime.Format(time.RFC3339)
			}
			return t.AddRow(
				strconv.FormatUint(s.Messages, 10),
				strconv.FormatUint(s.Bytes, 10),
				strconv.FormatUint(s.FirstSeq, 10),
				strconv.FormatUint(s.LastSeq, 10),
				oldest,
			)
		})
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish dead-lettered submissions for processing",
	Long: `Republish dead-lettered submissions to the submissions subject so the
core processor picks them up again. Replayed entries stay on the
dead-letter stream until purged.`,
	Example: `  crnactl dlq replay --reason insert_failed
  crnactl dlq replay --reason insert_failed --limit 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		reason, err := dlqReasonFlag(cmd)
		if err != nil {
			return err
		}

		q, closeQueue, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		n, err := q.Replay(cmd.Context(), reason, limit)
		if err != nil {
			return fmt.Errorf("replayed %d: %w", n, err)
		}
		printer(cmd).Success("Replayed %d submission(s)", n)
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete dead-lettered submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, err := dlqReasonFlag(cmd)
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to purge without --yes")
		}

		q, closeQueue, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		if err := q.Purge(cmd.Context(), reason); err != nil {
			return err
		}

		scope := "all entries"
		if reason != "" {
			scope = reason + " entries"
		}
		printer(cmd).Success("Purged %s", scope)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)
	dlqCmd.AddCommand(dlqReplayCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)

	reasonHelp := "only entries with this reason: " + strings.Join(dlqReasons, ", ")
	dlqListCmd.Flags().Int("limit", 50, "maximum entries to show; 0 shows all")
	dlqListCmd.Flags().String("reason", "", reasonHelp)
	dlqReplayCmd.Flags().Int("limit", 0, "maximum entries to replay; 0 replays all")
	dlqReplayCmd.Flags().String("reason", messaging.DLQReasonInsertFailed, reasonHelp)
	dlqPurgeCmd.Flags().String("reason", "", reasonHelp)
	dlqPurgeCmd.Flags().Bool("yes", false, "confirm the purge")
}

func dlqReasonFlag(cmd *cobra.Command) (string, error) {
	reason, _ := cmd.Flags().GetString("reason")
	if reason == "" {
		return "", nil
	}
	if slices.Contains(dlqReasons, reason) {
		return reason, nil
	}
	return "", fmt.Errorf("unknown dlq reason %q (want %s)", reason, strings.Join(dlqReasons, ", "))
}

func openQueue(cmd *cobra.Command) (*dlq.Queue, func(), error) {
	prof, err := currentProfile(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cliLogger(cmd)
	stream, closeStream, err := openDLQStream(prof, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return dlq.NewQueue(stream, logger), closeStream, nil
}
