package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	"github.com/crnapay/crnapay-stack/common/budgetguard"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Budget guard commands",
	Long:  "Inspect and override the pause state set by the budget monitor",
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which services are paused",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		guard, closeGuard, err := openGuard(cmd)
		if err != nil {
			return err
		}
		defer closeGuard()

		states, err := guard.Status(cmd.Context())
		if err != nil {
			return err
		}

		return printer(cmd).Print(states, func() *output.Table {
			t := output.NewTable("TARGET", "PAUSED", "REASON", "BUDGET", "COST RATIO", "SINCE")
			for _, s := range states {
				row := []string{string(s.Target), strconv.FormatBool(s.Paused)}
				if s.Pause != nil {
					row = append(row,
						s.Pause.Reason,
						s.Pause.Budget,
						strconv.FormatFloat(s.Pause.CostRatio, 'f', 2, 64),
						s.Pause.PausedAt.Format(time.RFC3339))
				}
				t.AddRow(row...)
			}
			return t
		})
	},
}

var budgetPauseCmd = &cobra.Command{
	Use:   "pause <target>",
	Short: "Pause ingest or core by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := budgetguard.ParseTarget(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		guard, closeGuard, err := openGuard(cmd)
		if err != nil {
			return err
		}
		defer closeGuard()

		err = guard.Pause(cmd.Context(), budgetguard.Pause{
			Target:   target,
			Reason:   reason,
			PausedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		printer(cmd).Success("Paused %s", target)
		return nil
	},
}

var budgetResumeCmd = &cobra.Command{
	Use:   "resume [target]",
	Short: "Resume one target, or every target when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guard, closeGuard, err := openGuard(cmd)
		if err != nil {
			return err
		}
		defer closeGuard()

		p := printer(cmd)

		if len(args) == 0 {
			n, err := guard.ResumeAll(cmd.Context())
			if err != nil {
				return err
			}
			p.Success("Resumed %d target(s)", n)
			return nil
		}

		target, err := budgetguard.ParseTarget(args[0])
		if err != nil {
			return err
		}
		resumed, err := guard.Resume(cmd.Context(), target)
		if err != nil {
			return err
		}
		if !resumed {
			p.Info("%s was not paused", target)
			return nil
		}
		p.Success("Resumed %s", target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetStatusCmd)
	budgetCmd.AddCommand(budgetPauseCmd)
	budgetCmd.AddCommand(budgetResumeCmd)

	budgetPauseCmd.Flags().String("reason", "manual", "reason recorded with the pause")
}

func openGuard(cmd *cobra.Command) (*budgetguard.Guard, func(), error) {
	prof, err := currentProfile(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := connectRedis(cmd.Context(), prof)
	if err != nil {
		return nil, nil, fmt.Errorf("budget guard: %w", err)
	}
	return budgetguard.New(client, prof.GuardKeyPrefix), func() { _ = client.Close() }, nil
}
