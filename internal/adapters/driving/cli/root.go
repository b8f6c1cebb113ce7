// Package cli wires the hydroprep commands: soils and land-cover input
// preparation plus lookup-table utilities.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/config"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verboseFlag bool
	configFlag  string
)

// cfg is the configuration loaded before any command runs.
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "hydroprep",
	Short: "Prepare soil and land-cover inputs for hydrologic models",
	Long: `hydroprep acquires and prepares the geospatial inputs hydrologic
models need: SSURGO soil polygons classified by hydrologic group, and NLCD
land cover reclassified to Manning's roughness coefficients.

Give each command an area-of-interest vector file (GeoJSON or GeoPackage,
EPSG:4326) and an output directory; hydroprep handles the service queries,
tiling, mosaicking, and clipping.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		loaded, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"print progress details to stderr")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"path to a hydroprep.toml (defaults to the user config dir)")
}

// Execute runs the root command. SIGINT cancels the command context so
// in-flight service requests stop instead of running to completion.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// httpClient builds the shared HTTP client from the loaded config.
func httpClient() *http.Client {
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
