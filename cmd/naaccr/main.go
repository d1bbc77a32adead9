package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rwaitman/naaccr-tumor-data/cmd/naaccr/commands"
	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

var rootCmd = &cobra.Command{
	Use:   "naaccr",
	Short: "naaccr - NAACCR tumor registry extracts to SQL and EAV facts",
	Long: `naaccr - Turn NAACCR fixed-width tumor registry extracts into something a
database can query.

The record layout is read from the NAACCR layout document. From it naaccr
derives a loader control file, a staging table and an entity-attribute-value
view, decodes extract lines into named fields, and ingests the coded, date
and text items as one fact per (record, item).

Available commands:
  am      - Manage naaccr configuration ("I am")
  layout  - Parse or fetch a layout document
  emit    - Generate loader control file, table DDL and EAV view
  decode  - Decode an extract into named fields
  ix      - Ingest an extract as EAV facts
  db      - Inspect the fact database
  version - Show build information

Examples:
  naaccr am init                       # Write ./am.toml with every default
  naaccr layout parse naaccr12.txt     # Show the fields of a layout document
  naaccr emit all --out build/         # Write naaccr_extract.ctl and .sql
  naaccr ix extract.txt --dry-run -v   # Decode and transform without saving
  naaccr db stats                      # Show fact counts`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(display.ShouldOutputJSON(cmd), verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output JSON instead of tables (also NAACCR_JSON=1)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.LayoutCmd)
	rootCmd.AddCommand(commands.EmitCmd)
	rootCmd.AddCommand(commands.DecodeCmd)
	rootCmd.AddCommand(commands.IxCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
