package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/seeder"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate fake submissions and send them to ingest",
	Long: `Generate realistic compensation submissions and post them to the
ingest service.

Configuration cascade (priority order):
  1. Command-line flags
  2. ./seeder.yaml (project directory)
  3. ~/.crnactl/seeder.yaml (user directory)
  4. Built-in defaults; the ingest URL falls back to the CLI profile`,
	Example: `  crnactl seed --count 500
  crnactl seed --count 50 --invalid-ratio 0.2 --seed 42
  crnactl seed --dry-run --count 3 -o json`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("seeder-config", "", "seeder config file (default: ./seeder.yaml or ~/.crnactl/seeder.yaml)")
	seedCmd.Flags().Int("count", 0, "number of submissions")
	seedCmd.Flags().Int("concurrency", 0, "parallel requests")
	seedCmd.Flags().Float64("invalid-ratio", 0, "share of deliberately invalid submissions (0-1)")
	seedCmd.Flags().Int64("seed", 0, "random seed; 0 picks one")
	seedCmd.Flags().String("data-source", "", "data_source recorded on each submission")
	seedCmd.Flags().Duration("interval", 0, "pause between submissions")
	seedCmd.Flags().Bool("dry-run", false, "print generated submissions instead of sending them")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("seeder-config")
	sc, err := seeder.LoadConfig(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		sc.Defaults.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("concurrency") {
		sc.Defaults.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("invalid-ratio") {
		sc.Defaults.InvalidRatio, _ = flags.GetFloat64("invalid-ratio")
	}
	if flags.Changed("seed") {
		sc.Defaults.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("data-source") {
		sc.Defaults.DataSource, _ = flags.GetString("data-source")
	}
	if flags.Changed("interval") {
		sc.Defaults.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("ingest-url") || sc.Defaults.IngestURL == "" {
		prof, err := currentProfile(cmd)
		if err != nil {
			return err
		}
		sc.Defaults.IngestURL = prof.IngestURL
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	p := printer(cmd)

	if dryRun, _ := flags.GetBool("dry-run"); dryRun {
		gen := seeder.NewGenerator(sc.Defaults.Seed, sc.Mix, sc.Defaults.InvalidRatio, sc.Defaults.DataSource)
		subs := make([]map[string]any, 0, sc.Defaults.Count)
		for range sc.Defaults.Count {
			sub, _ := gen.Next()
			subs = append(subs, sub)
		}
		if p.Format() == output.FormatTable {
			p = output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.FormatJSON)
		}
		return p.Print(subs, nil)
	}

	summary, err := seeder.NewRunner(sc, cliLogger(cmd)).Run(cmd.Context())
	if printErr := p.Print(summary, func() *output.Table {
		return output.NewTable("SENT", "ACCEPTED", "REJECTED", "FAILED", "MEANT INVALID", "DURATION").
			AddRow(itoa(summary.Sent), itoa(summary.Accepted), itoa(summary.Rejected),
				itoa(summary.Failed), itoa(summary.MeantInvalid), summary.Duration.Round(time.Millisecond).String())
	}); printErr != nil {
		return printErr
	}
	return err
}
