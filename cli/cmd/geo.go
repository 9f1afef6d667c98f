package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Geocoding index commands",
	Long:  "Manage the Redis postal code index used to derive submission geography",
}

var geoLoadCmd = &cobra.Command{
	Use:   "load <US.txt>",
	Short: "Load a GeoNames postal code dump into Redis",
	Long: `Parse a tab-separated GeoNames postal code dump (for example US.txt from
download.geonames.org/export/zip) and write every postal code into the
Redis geocode index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := geocode.LoadTableFile(args[0])
		if err != nil {
			return err
		}

		index, closeIndex, err := openGeoIndex(cmd)
		if err != nil {
			return err
		}
		defer closeIndex()

		n, err := index.Load(cmd.Context(), table)
		if err != nil {
			return fmt.Errorf("loaded %d of %d postal codes: %w", n, table.Len(), err)
		}

		printer(cmd).Success("Loaded %d postal codes", n)
		return nil
	},
}

var geoLookupCmd = &cobra.Command{
	Use:   "lookup <zip>",
	Short: "Look up a postal code in the Redis index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, closeIndex, err := openGeoIndex(cmd)
		if err != nil {
			return err
		}
		defer closeIndex()

		place, err := index.Lookup(cmd.Context(), args[0])
		if errors.Is(err, geocode.ErrNotFound) {
			return fmt.Errorf("postal code %s not found", args[0])
		}
		if err != nil {
			return err
		}

		return printer(cmd).Print(place, func() *output.Table {
			return output.NewTable("ZIP", "STATE", "PLACE", "COUNTY").
				AddRow(geocode.NormalizePostalCode(args[0]), place.StateCode, place.PlaceName, place.CountyName)
		})
	},
}

func init() {
	rootCmd.AddCommand(geoCmd)
	geoCmd.AddCommand(geoLoadCmd)
	geoCmd.AddCommand(geoLookupCmd)
}

func openGeoIndex(cmd *cobra.Command) (*geocode.RedisIndex, func(), error) {
	prof, err := currentProfile(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := connectRedis(cmd.Context(), prof)
	if err != nil {
		return nil, nil, err
	}
	return geocode.NewRedisIndex(client, prof.GeoKeyPrefix), func() { _ = client.Close() }, nil
}
