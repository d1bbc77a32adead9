package layout

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// Options configures Parse.
type Options struct {
	// Name labels the resulting schema; defaults to "layout".
	Name string
	// Version is the NAACCR layout version the document describes.
	Version string
	// Strict turns the first malformed candidate line into an error
	// instead of skipping it.
	Strict bool
	// Scan overrides the table markers. Zero value means DefaultScanOptions.
	Scan   *ScanOptions
	Logger *zap.SugaredLogger
}

// Report summarizes a Parse run.
type Report struct {
	HeaderLine int          `json:"header_line"` // 1-based
	Candidates int          `json:"candidates"`
	Parsed     int          `json:"parsed"`
	Skipped    []*LineError `json:"skipped,omitempty"`
	Warnings   []Warning    `json:"warnings,omitempty"`
}

// Parse reads a layout document and builds its Schema.
//
// Malformed candidate lines are skipped and listed in the Report unless
// opts.Strict is set. A document without a layout table fails with
// errors.ErrFormatDetection; duplicate field names fail with
// errors.ErrDuplicateFieldName.
func Parse(r io.Reader, opts Options) (*Schema, *Report, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, nil, err
	}
	return ParseLines(lines, opts)
}

// ParseFile is Parse over a file on disk. The schema is named after the
// file unless opts.Name is set.
func ParseFile(path string, opts Options) (*Schema, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open layout document %s", path)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Parse(f, opts)
}

// ParseLines is Parse over already-split, normalized lines.
func ParseLines(lines []string, opts Options) (*Schema, *Report, error) {
	log := logger.OrNop(opts.Logger)
	scan := DefaultScanOptions()
	if opts.Scan != nil {
		scan = *opts.Scan
	}
	if opts.Name == "" {
		opts.Name = "layout"
	}

	table, ok := FindTable(lines, scan)
	if !ok {
		return nil, nil, formatDetectionError(opts.Name, "no header line")
	}
	candidates := Candidates(lines, table, scan)
	if len(candidates) == 0 {
		return nil, nil, formatDetectionError(opts.Name, "header found but no data lines follow it")
	}

	report := &Report{HeaderLine: table.Header + 1, Candidates: len(candidates)}
	fields := make([]Field, 0, len(candidates))
	for _, c := range candidates {
		f, err := ParseLine(c.Text)
		if err != nil {
			var le *LineError
			if !errors.As(err, &le) {
				return nil, nil, err
			}
			le.Line = c.Number
			if opts.Strict {
				return nil, nil, errors.Wrap(le, "strict layout parse")
			}
			log.Warnw("Skipping malformed layout line",
				logger.FieldLine, c.Number,
				logger.FieldText, strings.TrimSpace(c.Text),
				logger.FieldError, le.Reason)
			report.Skipped = append(report.Skipped, le)
			continue
		}
		f.Line = c.Number
		fields = append(fields, f)
	}
	report.Parsed = len(fields)

	schema, err := Build(fields, BuildOptions{Name: opts.Name, Version: opts.Version, Logger: log})
	if err != nil {
		return nil, report, err
	}
	report.Warnings = schema.Warnings()

	log.Infow("Parsed record layout",
		logger.FieldFile, opts.Name,
		logger.FieldCount, report.Parsed,
		"skipped", len(report.Skipped),
		"record_length", schema.RecordLength())
	return schema, report, nil
}

func formatDetectionError(name, detail string) error {
	err := errors.Wrapf(errors.ErrFormatDetection, "%s: %s", name, detail)
	return errors.WithHint(err, "expected a line containing the column headers "+
		"\"Column #\", \"Length\", \"Item #\", \"Item Name\", \"Section\" and \"Note\"")
}
