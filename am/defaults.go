package am

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/emit"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	"github.com/rwaitman/naaccr-tumor-data/ix"
)

// Default field classification, by NAACCR item name.
var (
	DefaultIdentifierFields = []string{
		"Patient System ID-Hosp",
		"Tumor Record Number",
		"Patient ID Number",
		"Accession Number--Hosp",
		"Sequence Number--Hospital",
	}
	DefaultDateFields = []string{
		"Date of Birth",
		"Date of Diagnosis",
		"Date of Last Contact",
		"Date Case Initiated",
		"Date Case Completed",
		"Date Case Last Changed",
	}
	DefaultCodedFields = []string{
		"Sex",
		"Vital Status",
		"Race 1",
		"Spanish/Hispanic Origin",
		"Primary Site",
		"Laterality",
		"Histologic Type ICD-O-3",
		"Behavior Code ICD-O-3",
		"Grade",
		"Class of Case",
		"Sequence Number--Central",
		"Diagnostic Confirmation",
	}
	DefaultTextFields = []string{
		"Text--Remarks",
	}
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Layout defaults
	v.SetDefault("layout.path", "")
	v.SetDefault("layout.version", "")
	v.SetDefault("layout.strict", false)
	v.SetDefault("layout.encoding", "utf-8")

	// Target defaults
	names := emit.DefaultNames()
	v.SetDefault("target.schema_name", names.Schema)
	v.SetDefault("target.table_name", names.Table)
	v.SetDefault("target.view_name", names.View)
	v.SetDefault("target.id_columns", names.IDColumns)

	// Transform defaults
	key := eav.DefaultConfig()
	v.SetDefault("transform.coded_field_names", DefaultCodedFields)
	v.SetDefault("transform.date_field_names", DefaultDateFields)
	v.SetDefault("transform.identifier_field_names", DefaultIdentifierFields)
	v.SetDefault("transform.text_field_names", DefaultTextFields)
	v.SetDefault("transform.item_types_file", "")
	v.SetDefault("transform.patient_id_field", key.PatientIDField)
	v.SetDefault("transform.tumor_id_field", key.TumorIDField)
	v.SetDefault("transform.record_key_date_fields", key.KeyDateFields)
	v.SetDefault("transform.no_date_sentinel", key.NoDateSentinel)

	// Decode defaults
	v.SetDefault("decode.workers", 0) // GOMAXPROCS
	v.SetDefault("decode.batch_size", ix.DefaultBatchSize)
	v.SetDefault("decode.max_line_bytes", fwf.DefaultMaxLineBytes)

	// Database defaults
	v.SetDefault("database.path", "naaccr.db")
}

// BindSensitiveEnvVars explicitly binds path configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "NAACCR_DATABASE_PATH")
	v.BindEnv("layout.path", "NAACCR_LAYOUT_PATH")
	v.BindEnv("layout.version", "NAACCR_LAYOUT_VERSION")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "naaccr.db"
	}
	return c.Database.Path
}

// Names returns the emit target names.
func (c *Config) Names() emit.Names {
	return emit.Names{
		Schema:    c.Target.SchemaName,
		Table:     c.Target.TableName,
		View:      c.Target.ViewName,
		IDColumns: append([]string(nil), c.Target.IDColumns...),
	}
}

// ClassifierConfig returns the configured field classification.
func (c *Config) ClassifierConfig() eav.ClassifierConfig {
	return eav.ClassifierConfig{
		Coded:      c.Transform.CodedFieldNames,
		Date:       c.Transform.DateFieldNames,
		Identifier: c.Transform.IdentifierFieldNames,
		Text:       c.Transform.TextFieldNames,
		LegacyDate: c.Transform.LegacyDateFieldNames,
	}
}

// Classifier builds the classifier from the item types file, if any,
// overridden by the configured lists.
func (c *Config) Classifier() (*eav.Classifier, error) {
	var base map[string]eav.ItemKind
	if c.Transform.ItemTypesFile != "" {
		var err error
		if base, err = eav.LoadItemTypes(c.Transform.ItemTypesFile); err != nil {
			return nil, err
		}
	}
	return eav.NewClassifier(c.ClassifierConfig(), base)
}

// KeyConfig returns the record key configuration.
func (c *Config) KeyConfig() eav.Config {
	return eav.Config{
		PatientIDField: c.Transform.PatientIDField,
		TumorIDField:   c.Transform.TumorIDField,
		KeyDateFields:  c.Transform.RecordKeyDateFields,
		NoDateSentinel: c.Transform.NoDateSentinel,
	}
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Layout: %s (v%s), Target: %s.%s, Database: %s, Workers: %d}",
		c.Layout.Path, c.Layout.Version, c.Target.SchemaName, c.Target.TableName,
		c.Database.Path, c.Decode.Workers)
}
