package cmd

import (
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/config"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage deployment profiles",
	Long:  "Manage the named endpoint profiles stored in the crnactl config file",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile and make it current",
	Example: `  crnactl profile set staging --ingest-url https://ingest.staging.example.com \
    --redis-url redis://cache.staging:6379/0 --nats-url nats://nats.staging:4222`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p, ok := cfg.Profiles[name]
		if !ok {
			p = &config.Profile{}
		}

		flags := cmd.Flags()
		if flags.Changed("ingest-url") {
			p.IngestURL, _ = flags.GetString("ingest-url")
		}
		if flags.Changed("nats-url") {
			p.NATSURL, _ = flags.GetString("nats-url")
		}
		if flags.Changed("nats-token") {
			p.NATSToken, _ = flags.GetString("nats-token")
		}
		if flags.Changed("redis-url") {
			p.RedisURL, _ = flags.GetString("redis-url")
		}
		if flags.Changed("guard-key-prefix") {
			p.GuardKeyPrefix, _ = flags.GetString("guard-key-prefix")
		}
		if flags.Changed("geo-key-prefix") {
			p.GeoKeyPrefix, _ = flags.GetString("geo-key-prefix")
		}

		if err := cfg.SaveProfile(name, p); err != nil {
			return err
		}
		printer(cmd).Success("Saved profile %s to %s", name, cfg.Path())
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		printer(cmd).Success("Using profile %s", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		printer(cmd).Success("Removed profile %s", args[0])
		return nil
	},
}

type profileView struct {
	Name    string          `json:"name" yaml:"name"`
	Current bool            `json:"current" yaml:"current"`
	Profile *config.Profile `json:"profile" yaml:"profile"`
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with their resolved endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := slices.Sorted(maps.Keys(cfg.Profiles))
		if !slices.Contains(names, "default") {
			names = append([]string{"default"}, names...)
		}

		views := make([]profileView, 0, len(names))
		for _, name := range names {
			p, err := cfg.GetProfile(name)
			if err != nil {
				return err
			}
			// Tokens are never printed.
			if p.NATSToken != "" {
				p.NATSToken = "********"
			}
			views = append(views, profileView{Name: name, Current: name == cfg.CurrentProfile, Profile: p})
		}

		return printer(cmd).Print(views, func() *output.Table {
			t := output.NewTable("", "NAME", "INGEST", "NATS", "REDIS")
			for _, v := range views {
				marker := ""
				if v.Current {
					marker = "*"
				}
				t.AddRow(marker, v.Name, v.Profile.IngestURL, v.Profile.NATSURL, v.Profile.RedisURL)
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileListCmd)

	profileSetCmd.Flags().String("nats-token", "", "NATS auth token")
	profileSetCmd.Flags().String("guard-key-prefix", "", "Redis key prefix of budget pause keys")
	profileSetCmd.Flags().String("geo-key-prefix", "", "Redis key prefix of the geocode index")
}
