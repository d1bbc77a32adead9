package commands

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/rwaitman/naaccr-tumor-data/am"
	"github.com/rwaitman/naaccr-tumor-data/db"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	"github.com/rwaitman/naaccr-tumor-data/layout"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// loadConfig loads and validates the merged configuration.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid configuration"),
			"run 'naaccr am where' to see which file sets each value")
	}
	return cfg, nil
}

// layoutInput picks the layout document: the argument if given, else
// layout.path from the config.
func layoutInput(cfg *am.Config, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if cfg.Layout.Path == "" {
		return "", errors.WithHint(errors.NewInvalidRequestError("no layout document given"),
			"pass one as an argument or set layout.path with 'naaccr am set layout.path <file>'")
	}
	return cfg.Layout.Path, nil
}

// loadSchema resolves input (a path or a go-getter URL) and parses it with
// the configured version and strictness.
func loadSchema(ctx context.Context, cfg *am.Config, input string) (*layout.Schema, *layout.Report, error) {
	log := logger.ComponentLogger("layout")
	doc, err := layout.Resolve(ctx, input, log)
	if err != nil {
		return nil, nil, err
	}
	defer doc.Close()

	return layout.ParseFile(doc.Path, layout.Options{
		Version: cfg.Layout.Version,
		Strict:  cfg.Layout.Strict,
		Logger:  log,
	})
}

// openDatabase opens and migrates the configured fact database. A non-empty
// path overrides the config.
func openDatabase(cfg *am.Config, path string) (*sql.DB, error) {
	if path == "" {
		path = cfg.GetDatabasePath()
	}
	return db.OpenWithMigrations(path, logger.ComponentLogger("db"))
}

// newDecoder builds a decoder for schema using the configured encoding.
func newDecoder(cfg *am.Config, schema *layout.Schema) (*fwf.Decoder, error) {
	enc, err := fwf.EncodingByName(cfg.Layout.Encoding)
	if err != nil {
		return nil, err
	}
	return fwf.NewDecoder(schema, fwf.WithEncoding(enc)), nil
}

// openInput opens an extract, "-" meaning stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open extract %s", path)
	}
	return f, nil
}
