package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/lookup"
	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/rasterfile"
	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/vectorfile"
	"github.com/openhydrology/hydroprep-cli/internal/connectors/mrlc"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driving"
	"github.com/openhydrology/hydroprep-cli/internal/core/services"
)

var (
	landcoverOutFlag    string
	landcoverLookupFlag string
	landcoverNativeFlag bool
)

// landCoverPreparer is replaced by tests; when nil the command builds the
// real pipeline from the loaded config.
var landCoverPreparer driving.LandCoverPreparer

var landcoverCmd = &cobra.Command{
	Use:   "landcover <aoi-file>",
	Short: "Download NLCD land cover and derive Manning's n for an area of interest",
	Long: `Downloads the NLCD land-cover coverage for the area of interest,
mosaics and clips it to the AOI, reclassifies every cell to a Manning's
roughness coefficient, and writes:

  nlcd_clip.tif        clipped land-cover codes
  mannings_n_clip.tif  reclassified Manning's n values

Outputs are resampled to EPSG:4326 unless --native keeps the NLCD's
EPSG:5070 grid. The default lookup table can be exported with
"hydroprep lookup export" and customised via --lookup.`,
	Args: cobra.ExactArgs(1),
	RunE: runLandCover,
}

func init() {
	landcoverCmd.Flags().StringVarP(&landcoverOutFlag, "out", "o", ".", "output directory")
	landcoverCmd.Flags().StringVar(&landcoverLookupFlag, "lookup", "", "Manning's n lookup CSV (built-in table when omitted)")
	landcoverCmd.Flags().BoolVar(&landcoverNativeFlag, "native", false, "keep rasters in EPSG:5070 instead of resampling to EPSG:4326")
	rootCmd.AddCommand(landcoverCmd)
}

func runLandCover(cmd *cobra.Command, args []string) error {
	preparer := landCoverPreparer
	if preparer == nil {
		preparer = buildLandCoverPreparer()
	}

	res, err := preparer.Prepare(cmd.Context(), driving.LandCoverOptions{
		AOIPath:    args[0],
		OutputDir:  landcoverOutFlag,
		LookupPath: landcoverLookupFlag,
		KeepNative: landcoverNativeFlag,
	})
	if err != nil {
		return fmt.Errorf("land-cover preparation failed: %w", err)
	}

	cmd.Printf("Wrote land cover and Manning's n rasters in EPSG:%d.\n", res.SRID)
	if res.TilesFailed > 0 {
		cmd.Printf("Warning: %d of %d tiles failed; coverage may be incomplete.\n",
			res.TilesFailed, res.TilesFailed+res.TilesFetched)
	}
	if res.UnmatchedCells > 0 {
		cmd.Printf("Warning: %d cells carry codes missing from the lookup table.\n", res.UnmatchedCells)
	}
	cmd.Printf("Land cover:  %s\n", res.LandCoverPath)
	cmd.Printf("Manning's n: %s\n", res.ManningsPath)
	return nil
}

func buildLandCoverPreparer() driving.LandCoverPreparer {
	coverage := mrlc.NewWCSClient(
		mrlc.WithWCSHTTPClient(httpClient()),
		mrlc.WithWCSBaseURL(orDefault(cfg.Endpoints.WCS, mrlc.DefaultWCSBaseURL)),
		mrlc.WithCoverageID(orDefault(cfg.Endpoints.CoverageID, mrlc.DefaultCoverageID)),
		mrlc.WithWCSRequestsPerSecond(cfg.HTTP.RequestsPerSecond),
		mrlc.WithWCSAttempts(cfg.HTTP.Attempts),
	)
	return services.NewLandCoverService(coverage, vectorfile.NewStore(), rasterfile.NewStore(), lookup.NewCSVSource(),
		services.WithLandCoverTiling(cfg.Tiling.LandCoverTileMeters, cfg.Tiling.LandCoverMarginMeters),
		services.WithSplitThreshold(cfg.Tiling.SplitThresholdSqDeg),
		services.WithLandCoverWorkers(cfg.Workers),
		services.WithLandCoverProgress(newProgressReporter()),
	)
}
