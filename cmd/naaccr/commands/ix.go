package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	"github.com/rwaitman/naaccr-tumor-data/ix"
	"github.com/rwaitman/naaccr-tumor-data/logger"
	"github.com/rwaitman/naaccr-tumor-data/store"
)

// IxCmd ingests an extract as EAV facts.
var IxCmd = &cobra.Command{
	Use:   "ix <extract>",
	Short: "Ingest an extract as EAV tumor facts",
	Long: `ix - Ingest a NAACCR extract

Each line is decoded with the record layout, checked against the layout
version, and turned into one fact per coded, date or text item. Facts are
written to the database together with an ingest batch record; duplicate
record keys and unparsable dates are recorded as anomalies.

Examples:
  naaccr ix extract.txt                  # Ingest into database.path
  naaccr ix extract.txt --dry-run -v     # Decode and transform only, show progress
  naaccr ix extract.txt --json           # Print the result as JSON
  naaccr ix extract.txt --events         # Stream progress events as JSON lines`,
	Args: cobra.ExactArgs(1),
	RunE: runIx,
}

var (
	ixDryRun bool
	ixEvents bool
	ixLayout string
	ixDB     string
)

func init() {
	IxCmd.Flags().BoolVar(&ixDryRun, "dry-run", false, "Decode and transform without writing to the database")
	IxCmd.Flags().BoolVar(&ixEvents, "events", false, "Stream progress events as JSON lines on stdout")
	IxCmd.Flags().StringVar(&ixLayout, "layout", "", "Layout document (default: layout.path)")
	IxCmd.Flags().StringVar(&ixDB, "db", "", "Database path (default: database.path)")
}

func runIx(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.ComponentLogger("ix")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	input, err := layoutInput(cfg, ixLayout)
	if err != nil {
		return err
	}
	schema, _, err := loadSchema(ctx, cfg, input)
	if err != nil {
		return err
	}
	dec, err := newDecoder(cfg, schema)
	if err != nil {
		return err
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}
	transformer, err := eav.NewTransformer(schema, classifier, cfg.KeyConfig(), logger.ComponentLogger("eav"))
	if err != nil {
		return err
	}
	version, err := fwf.NewVersionCheck(cfg.Layout.Version)
	if err != nil {
		return err
	}

	asJSON := display.ShouldOutputJSON(cmd)
	var emitter ix.ProgressEmitter
	switch {
	case ixEvents:
		emitter = ix.NewJSONEmitter(cmd.OutOrStdout())
	case asJSON:
		emitter = ix.NopEmitter{}
	default:
		verbosity, _ := cmd.Flags().GetCount("verbose")
		emitter = ix.NewCLIEmitter(verbosity)
	}

	opts := ix.Options{
		Decoder:      dec,
		Transformer:  transformer,
		Version:      version,
		BatchSize:    cfg.Decode.BatchSize,
		Workers:      cfg.Decode.Workers,
		MaxLineBytes: cfg.Decode.MaxLineBytes,
		Emitter:      emitter,
		Logger:       log,
	}

	if !ixDryRun {
		database, err := openDatabase(cfg, ixDB)
		if err != nil {
			return err
		}
		defer database.Close()

		facts := store.NewFactStore(database, logger.ComponentLogger("store"))
		layoutID, err := facts.SaveLayout(ctx, schema)
		if err != nil {
			return err
		}
		opts.Sink = facts
		opts.LayoutID = layoutID
	}

	pipeline, err := ix.New(opts)
	if err != nil {
		return err
	}

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	source := args[0]
	if source != "-" {
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
	}

	res, runErr := pipeline.Run(ctx, in, source)
	if res != nil && asJSON && !ixEvents {
		if err := display.WriteJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if len(res.Warnings) > 0 && !asJSON && !ixEvents {
		fmt.Fprintf(os.Stderr, "%d warnings (use --json to list them, %s to list anomalies)\n",
			len(res.Warnings), logger.FlagName(logger.VerbosityDebug))
	}
	return nil
}
