package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crnapay/crnapay-stack/cli/internal/dryrun"
	"github.com/crnapay/crnapay-stack/cli/pkg/output"
	"github.com/crnapay/crnapay-stack/core/pkg/geocode"
	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Dry-run submissions through validation and enrichment",
	Long: `Validate, enrich and project submissions locally without queueing or
storing them. The file holds one JSON object, a JSON array of objects, or
newline-delimited objects; "-" reads standard input.

Missing server fields are stamped the way ingest stamps them unless
--no-stamp is given. The command fails when any submission is rejected.`,
	Example: `  crnactl validate submission.json
  crnactl validate --geo-file US.txt -o json batch.json
  cat batch.ndjson | crnactl validate --geo-redis -`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("geo-file", "", "GeoNames postal code dump used for geography")
	validateCmd.Flags().Bool("geo-redis", false, "use the Redis geocode index from the profile")
	validateCmd.Flags().Bool("no-stamp", false, "do not fill missing server fields")
	validateCmd.Flags().Bool("show-rows", false, "print every projected column in table output")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := printer(cmd)

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	raws, err := dryrun.Parse(data)
	if err != nil {
		return err
	}

	geocoder, closeGeo, err := validateGeocoder(cmd)
	if err != nil {
		return err
	}
	defer closeGeo()

	noStamp, _ := cmd.Flags().GetBool("no-stamp")
	results, err := dryrun.New(geocoder, !noStamp, nil).EvaluateAll(ctx, raws)
	if err != nil {
		return err
	}

	showRows, _ := cmd.Flags().GetBool("show-rows")
	if err := p.Print(results, func() *output.Table { return resultsTable(results) }); err != nil {
		return err
	}

	rejected := 0
	for _, r := range results {
		if r.Status == dryrun.StatusRejected {
			rejected++
		}
	}

	if p.Format() == output.FormatTable {
		for _, r := range results {
			for _, e := range r.Errors {
				p.Warn("#%d %s", r.Index, e)
			}
			if showRows && r.Row != nil {
				fmt.Fprintln(cmd.OutOrStdout())
				rowTable(r.Row).Render(cmd.OutOrStdout())
			}
		}
		if rejected == 0 {
			p.Success("%d submission(s) valid", len(results))
		}
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d submission(s) rejected", rejected, len(results))
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func validateGeocoder(cmd *cobra.Command) (geocode.Geocoder, func(), error) {
	var chain geocode.Chain
	closer := func() {}

	if useRedis, _ := cmd.Flags().GetBool("geo-redis"); useRedis {
		prof, err := currentProfile(cmd)
		if err != nil {
			return nil, closer, err
		}
		client, err := connectRedis(cmd.Context(), prof)
		if err != nil {
			return nil, closer, err
		}
		closer = func() { _ = client.Close() }
		chain = append(chain, geocode.NewRedisIndex(client, prof.GeoKeyPrefix))
	}

	if path, _ := cmd.Flags().GetString("geo-file"); path != "" {
		table, err := geocode.LoadTableFile(path)
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		chain = append(chain, table)
	}

	switch len(chain) {
	case 0:
		return nil, closer, nil
	case 1:
		return chain[0], closer, nil
	default:
		return chain, closer, nil
	}
}

func resultsTable(results []dryrun.Result) *output.Table {
	t := output.NewTable("#", "SUBMISSION ID", "STATUS", "REGION", "TOTAL COMP", "ERRORS")
	for _, r := range results {
		t.AddRow(
			strconv.Itoa(r.Index),
			r.SubmissionID,
			r.Status,
			cell(r.Row[submission.ColLocationRegion]),
			cell(r.Row[submission.ColTotalEstimatedAnnualCompensation]),
			strconv.Itoa(len(r.Errors)),
		)
	}
	return t
}

func rowTable(row map[string]any) *output.Table {
	t := output.NewTable("COLUMN", "VALUE")
	for _, col := range submission.Columns {
		t.AddRow(col, cell(row[col]))
	}
	return t
}

// cell renders a column value; NULL columns render empty.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return strings.TrimSpace(x)
	default:
		return fmt.Sprint(x)
	}
}
