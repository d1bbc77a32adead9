package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rwaitman/naaccr-tumor-data/am"
	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// LayoutCmd groups the layout document commands.
var LayoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Parse or fetch a NAACCR layout document",
	Long: `layout - Work with the NAACCR record layout document

The layout document is the text rendering of the "Record Layout Table"
chapter of the NAACCR standard. It may be a local file or anything
go-getter understands (https://, s3::, gcs::, git::).

Examples:
  naaccr layout parse                          # Parse layout.path from am.toml
  naaccr layout parse naaccr12.txt --json      # Fields and parse report as JSON
  naaccr layout fetch https://example.org/naaccr12.txt -o naaccr12.txt`,
}

var layoutParseCmd = &cobra.Command{
	Use:   "parse [document]",
	Short: "Parse a layout document and list its fields",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLayoutParse,
}

var layoutFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a layout document and check that it parses",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayoutFetch,
}

var (
	layoutStrict bool
	fetchOutput  string
)

func init() {
	layoutParseCmd.Flags().BoolVar(&layoutStrict, "strict", false, "Fail on the first malformed layout line")
	layoutFetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Where to save the document (default: its base name)")

	LayoutCmd.AddCommand(layoutParseCmd)
	LayoutCmd.AddCommand(layoutFetchCmd)
}

func runLayoutParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if layoutStrict {
		cfg.Layout.Strict = true
	}
	input, err := layoutInput(cfg, firstArg(args))
	if err != nil {
		return err
	}

	schema, report, err := loadSchema(cmd.Context(), cfg, input)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
			"name":          schema.Name(),
			"version":       schema.Version(),
			"record_length": schema.RecordLength(),
			"fields":        schema.Fields(),
			"report":        report,
		})
	}
	return printSchema(cmd.OutOrStdout(), schema, report)
}

func printSchema(w io.Writer, schema *layout.Schema, report *layout.Report) error {
	rows := make([][]string, 0, schema.Len())
	for _, f := range schema.Fields() {
		columns, length, item := f.Tokens()
		rows = append(rows, []string{columns, length, item, f.Name, string(f.Section), string(f.Note)})
	}
	if err := display.Table(w, []string{"Columns", "Length", "Item #", "Name", "Section", "Note"}, rows); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d fields, record length %d (header at line %d)\n",
		schema.Len(), schema.RecordLength(), report.HeaderLine)
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped line %d: %s\n", s.Line, s.Reason)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
	return nil
}

func runLayoutFetch(cmd *cobra.Command, args []string) error {
	log := logger.ComponentLogger("layout")
	doc, err := layout.Resolve(cmd.Context(), args[0], log)
	if err != nil {
		return err
	}
	defer doc.Close()

	// Parse before saving so a page that is not a layout document is not kept.
	schema, _, err := layout.ParseFile(doc.Path, layout.Options{Logger: log})
	if err != nil {
		return err
	}

	dst := fetchOutput
	if dst == "" {
		dst = filepath.Base(doc.Path)
	}
	if err := copyFile(doc.Path, dst); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
			"source": args[0],
			"path":   dst,
			"fields": schema.Len(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s (%d fields)\n", dst, schema.Len())
	return nil
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, am.DefaultFilePermissions)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to write %s", dst)
	}
	return out.Close()
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
