package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/vectorfile"
	"github.com/openhydrology/hydroprep-cli/internal/connectors/nrcs"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driving"
	"github.com/openhydrology/hydroprep-cli/internal/core/services"
)

var (
	soilsOutFlag    string
	soilsFormatFlag string
)

// soilsPreparer is replaced by tests; when nil the command builds the real
// pipeline from the loaded config.
var soilsPreparer driving.SoilsPreparer

var soilsCmd = &cobra.Command{
	Use:   "soils <aoi-file>",
	Short: "Download and classify SSURGO soils for an area of interest",
	Long: `Downloads SSURGO map-unit polygons covering the area of interest,
resolves the dominant hydrologic group of every map unit through the Soil
Data Access tabular service, and writes:

  ssurgo_data.<ext>           raw map units clipped to the AOI bounds
  ssurgo_soil_classes.<ext>   one dissolved feature per hydrologic class
  component_source_data.csv   raw component records (audit)
  hydrogroup_data.csv         summed percentages per group and unit (audit)`,
	Args: cobra.ExactArgs(1),
	RunE: runSoils,
}

func init() {
	soilsCmd.Flags().StringVarP(&soilsOutFlag, "out", "o", ".", "output directory")
	soilsCmd.Flags().StringVar(&soilsFormatFlag, "format", "gpkg", "vector output format: gpkg or geojson")
	rootCmd.AddCommand(soilsCmd)
}

func runSoils(cmd *cobra.Command, args []string) error {
	preparer := soilsPreparer
	if preparer == nil {
		preparer = buildSoilsPreparer()
	}

	res, err := preparer.Prepare(cmd.Context(), driving.SoilsOptions{
		AOIPath:   args[0],
		OutputDir: soilsOutFlag,
		Format:    soilsFormatFlag,
	})
	if err != nil {
		return fmt.Errorf("soils preparation failed: %w", err)
	}

	cmd.Printf("Classified %d map units into %d hydrologic classes.\n", res.MapUnits, len(res.Classes))
	printClassCounts(cmd, res)
	if res.TilesFailed > 0 {
		cmd.Printf("Warning: %d of %d tiles failed; coverage may be incomplete.\n",
			res.TilesFailed, res.TilesFailed+res.TilesFetched)
	}
	cmd.Printf("Soil map units:  %s\n", res.SoilsPath)
	cmd.Printf("Soil classes:    %s\n", res.ClassesPath)
	cmd.Printf("Audit files:     %s, %s\n", res.ComponentCSV, res.HydroGroupCSV)
	return nil
}

func printClassCounts(cmd *cobra.Command, res *driving.SoilsResult) {
	counts := make(map[string]int)
	for _, group := range res.ClassifiedMap {
		counts[group]++
	}
	groups := make([]string, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		cmd.Printf("  group %-3s %d map units\n", g, counts[g])
	}
}

func buildSoilsPreparer() driving.SoilsPreparer {
	survey := nrcs.NewWFSClient(
		nrcs.WithWFSHTTPClient(httpClient()),
		nrcs.WithWFSBaseURL(orDefault(cfg.Endpoints.WFS, nrcs.DefaultWFSBaseURL)),
		nrcs.WithWFSRateLimiter(nrcs.NewRateLimiter(cfg.HTTP.RequestsPerSecond, nil)),
		nrcs.WithWFSAttempts(cfg.HTTP.Attempts),
	)
	tabular := nrcs.NewSDAClient(
		nrcs.WithSDAHTTPClient(httpClient()),
		nrcs.WithSDAEndpoint(orDefault(cfg.Endpoints.SDA, nrcs.DefaultSDAURL)),
		nrcs.WithSDARateLimiter(nrcs.NewRateLimiter(cfg.HTTP.RequestsPerSecond, nil)),
		nrcs.WithSDAAttempts(cfg.HTTP.Attempts),
	)
	return services.NewSoilsService(survey, tabular, vectorfile.NewStore(),
		services.WithSoilsTiling(cfg.Tiling.SoilsTileDegrees, cfg.Tiling.SoilsMarginDegrees),
		services.WithSoilsWorkers(cfg.Workers),
		services.WithSoilsProgress(newProgressReporter()),
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
