package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/config"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	commonconfig "github.com/crnapay/crnapay-stack/common/config"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "crnactl",
	Short: "crnapay stack CLI",
	Long: `crnactl is the command-line interface for the crnapay compensation stack.

Validate and submit compensation records, seed test data, load the
geocoding index, and operate the budget guard and dead-letter queue.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			output.DisableColor()
		}
		_, err := output.ParseFormat(outputFlag(cmd))
		return err
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.New(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), output.FormatTable).Error("%v", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crnactl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log progress to stderr")
	rootCmd.PersistentFlags().String("ingest-url", "", "ingest service URL (overrides the profile)")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL (overrides the profile)")
	rootCmd.PersistentFlags().String("nats-url", "", "NATS URL (overrides the profile)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

func outputFlag(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

// printer writes to the command's configured streams so tests can capture
// output with SetOut and SetErr.
func printer(cmd *cobra.Command) *output.Printer {
	format, err := output.ParseFormat(outputFlag(cmd))
	if err != nil {
		format = output.FormatTable
	}
	return output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
}

// currentProfile resolves --profile and applies per-command URL overrides.
func currentProfile(cmd *cobra.Command) (*config.Profile, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	name, _ := cmd.Flags().GetString("profile")
	p, err := cfg.GetProfile(name)
	if err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("ingest-url"); f != nil && f.Changed {
		p.IngestURL = f.Value.String()
	}
	if f := cmd.Flags().Lookup("redis-url"); f != nil && f.Changed {
		p.RedisURL = f.Value.String()
	}
	if f := cmd.Flags().Lookup("nats-url"); f != nil && f.Changed {
		p.NATSURL = f.Value.String()
	}
	return p, nil
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connectRedis(ctx context.Context, p *config.Profile) (*redis.Client, error) {
	return commonconfig.RedisConfig{URL: p.RedisURL, Enabled: true}.NewClient(ctx)
}

func connectJetStream(p *config.Profile, logger *slog.Logger) (*natsclient.JetStreamClient, error) {
	natsCfg := commonconfig.NATSConfig{URL: p.NATSURL, Token: p.NATSToken}.ClientConfig("crnactl")
	natsCfg.MaxReconnects = 0
	return natsclient.NewJetStreamClient(natsCfg, logger)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
