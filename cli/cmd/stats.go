package cmd

import (
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	"github.com/crnapay/crnapay-stack/common/intakestats"
)

var statsCmd = &cobra.Command{
	Use:   "stats [source]",
	Short: "Show intake statistics per data source",
	Long: `Show accepted and rejected submission counts recorded by the ingest
service, for one data source or for every source seen.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := currentProfile(cmd)
		if err != nil {
			return err
		}
		rdb, err := connectRedis(cmd.Context(), prof)
		if err != nil {
			return err
		}
		defer rdb.Close()

		client := intakestats.NewClient(rdb, "")

		sources := args
		if len(sources) == 0 {
			if sources, err = client.ListSources(cmd.Context()); err != nil {
				return err
			}
			slices.Sort(sources)
		}

		all := make([]*intakestats.Stats, 0, len(sources))
		for _, source := range sources {
			s, err := client.GetStats(cmd.Context(), source)
			if err != nil {
				return err
			}
			all = append(all, s)
		}

		return printer(cmd).Print(all, func() *output.Table {
			t := output.NewTable("SOURCE", "ACCEPTED", "REJECTED", "ACCEPTED 24H", "REJECTED 24H", "UNIQUE IPS TODAY", "LAST RECEIVED", "LAST IP")
			for _, s := range all {
				last := ""
				if s.LastReceivedAt != nil {
					last = s.LastReceivedAt.Format(time.RFC3339)
				}
				t.AddRow(
					s.Source,
					strconv.FormatInt(s.Accepted, 10),
					strconv.FormatInt(s.Rejected, 10),
					strconv.FormatInt(s.AcceptedLast24h, 10),
					strconv.FormatInt(s.RejectedLast24h, 10),
					strconv.FormatInt(s.UniqueIPsToday, 10),
					last,
					s.LastIP,
				)
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
