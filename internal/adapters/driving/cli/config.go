package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the hydroprep configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file populated with the defaults",
	Long: `Writes a hydroprep.toml populated with the default endpoints, HTTP
settings, and tiling parameters, ready to edit. The file goes to the
per-user config directory, or to the path given with --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configFlag
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		cmd.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
