package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openhydrology/hydroprep-cli/internal/adapters/driven/lookup"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Manage Manning's n lookup tables",
}

var lookupExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write the built-in Manning's n table as a CSV",
	Long: `Writes the built-in NLCD code to Manning's n table as a CSV with the
columns value, nlcd_name, mannings_n. Edit the file and pass it back with
"hydroprep landcover --lookup" to reclassify with custom coefficients.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := lookup.ExportDefault(args[0]); err != nil {
			return fmt.Errorf("export lookup table: %w", err)
		}
		cmd.Printf("Wrote default Manning's n table to %s\n", args[0])
		return nil
	},
}

var lookupShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print a Manning's n lookup table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		table, err := lookup.NewCSVSource().Load(path)
		if err != nil {
			return err
		}
		cmd.Printf("%-6s %-35s %s\n", "code", "class", "mannings_n")
		for _, e := range table.Entries() {
			cmd.Printf("%-6d %-35s %g\n", e.Code, e.Name, e.Roughness)
		}
		return nil
	},
}

func init() {
	lookupCmd.AddCommand(lookupExportCmd)
	lookupCmd.AddCommand(lookupShowCmd)
	rootCmd.AddCommand(lookupCmd)
}
