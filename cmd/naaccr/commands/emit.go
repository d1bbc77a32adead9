package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rwaitman/naaccr-tumor-data/am"
	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/emit"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// EmitCmd generates the schema artifacts.
var EmitCmd = &cobra.Command{
	Use:   "emit [ctl|ddl|view|all] [document]",
	Short: "Generate the loader control file, table DDL and EAV view",
	Long: `emit - Generate schema artifacts from the record layout

  ctl   SQL*Loader-style control file with one position(start:end) per field
  ddl   CREATE TABLE with one VARCHAR2(length) column per field
  view  CREATE VIEW unpivoting the staging table to (record id, item, value)
  all   the control file followed by the SQL script (default)

Names come from the [target] section of the configuration.

With --out the control file and the SQL script are written to
naaccr_extract.ctl and naaccr_extract.sql in that directory. With --watch
they are regenerated whenever the config or the layout document changes.

Examples:
  naaccr emit view                       # Print the EAV view
  naaccr emit all --out build/           # Write both files
  naaccr emit --out build/ --watch       # Keep them up to date`,
	Args: cobra.MaximumNArgs(2),
	RunE: runEmit,
}

var (
	emitOut   string
	emitWatch bool
)

func init() {
	EmitCmd.Flags().StringVar(&emitOut, "out", "", "Directory to write naaccr_extract.ctl and naaccr_extract.sql")
	EmitCmd.Flags().BoolVar(&emitWatch, "watch", false, "Regenerate on config or layout changes (requires --out)")
}

func runEmit(cmd *cobra.Command, args []string) error {
	artifact := emit.ArtifactAll
	if len(args) > 0 {
		a, err := emit.ParseArtifact(args[0])
		if err != nil {
			return err
		}
		artifact = a
	}
	if emitWatch && emitOut == "" {
		return errors.WithHint(errors.NewInvalidRequestError("--watch needs --out"),
			"watching only makes sense when writing files")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var docArg string
	if len(args) > 1 {
		docArg = args[1]
	}
	input, err := layoutInput(cfg, docArg)
	if err != nil {
		return err
	}

	if err := generate(cmd, cfg, input, artifact); err != nil {
		return err
	}
	if !emitWatch {
		return nil
	}
	return watchAndGenerate(cmd, input, docArg, artifact)
}

func generate(cmd *cobra.Command, cfg *am.Config, input string, artifact emit.Artifact) error {
	schema, _, err := loadSchema(cmd.Context(), cfg, input)
	if err != nil {
		return err
	}

	if emitOut == "" {
		return emit.WriteTo(cmd.OutOrStdout(), schema, cfg.Names(), artifact)
	}

	files := emit.DefaultFiles(emitOut)
	if err := emit.WriteFiles(schema, cfg.Names(), files); err != nil {
		return err
	}
	logger.Infow("Wrote schema artifacts",
		"control", files.Control,
		"script", files.Script,
		logger.FieldCount, schema.Len())
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), files)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n✓ %s\n", files.Control, files.Script)
	return nil
}

func watchAndGenerate(cmd *cobra.Command, input, docArg string, artifact emit.Artifact) error {
	log := logger.ComponentLogger("emit")

	// Watch the nearest config file if there is one, and always the layout.
	primary := input
	if files := am.ConfigFiles(); len(files) > 0 {
		primary = files[len(files)-1]
	}
	cw, err := am.NewConfigWatcher(primary, log)
	if err != nil {
		return err
	}
	if primary != input {
		if _, statErr := os.Stat(input); statErr == nil {
			if err := cw.Watch(input); err != nil {
				cw.Stop()
				return err
			}
		}
	}
	cw.WithLoader(func() (*am.Config, error) {
		am.Reset()
		return am.Load()
	})
	cw.OnReload(func(cfg *am.Config) error {
		next, err := layoutInput(cfg, docArg)
		if err != nil {
			return err
		}
		return generate(cmd, cfg, next, artifact)
	})
	am.SetGlobalWatcher(cw)
	cw.Start()
	defer func() {
		am.SetGlobalWatcher(nil)
		cw.Stop()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Infow("Watching for changes", logger.FieldFile, primary, "layout", input)
	<-ctx.Done()
	return nil
}
