package am

import (
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Decode workers: 0 = GOMAXPROCS, negative = invalid
	if c.Decode.Workers < 0 {
		return errors.Newf("decode.workers must be >= 0, got %d", c.Decode.Workers)
	}
	if c.Decode.BatchSize < 0 {
		return errors.Newf("decode.batch_size must be >= 0, got %d", c.Decode.BatchSize)
	}
	if c.Decode.MaxLineBytes < 0 {
		return errors.Newf("decode.max_line_bytes must be >= 0, got %d", c.Decode.MaxLineBytes)
	}

	if c.Target.SchemaName == "" {
		return errors.New("target.schema_name cannot be empty")
	}
	if c.Target.TableName == "" {
		return errors.New("target.table_name cannot be empty")
	}
	if c.Target.ViewName == "" {
		return errors.New("target.view_name cannot be empty")
	}
	for _, col := range c.Target.IDColumns {
		if col == "" {
			return errors.New("target.id_columns cannot contain an empty name")
		}
	}

	if c.Transform.PatientIDField == "" || c.Transform.TumorIDField == "" {
		return errors.New("transform.patient_id_field and transform.tumor_id_field are required")
	}

	if _, err := fwf.EncodingByName(c.Layout.Encoding); err != nil {
		return errors.Wrap(err, "layout.encoding")
	}
	if _, err := fwf.NewVersionCheck(c.Layout.Version); err != nil {
		return errors.WithHint(errors.Wrap(err, "layout.version"),
			"use a version such as \"12.1\" or a constraint such as \"~12\"")
	}

	if _, err := c.Classifier(); err != nil {
		return errors.Wrap(err, "transform")
	}

	return nil
}
