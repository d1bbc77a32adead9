// Package am loads naaccr configuration from defaults, TOML files and
// NAACCR_* environment variables.
package am

// Config represents the naaccr configuration
type Config struct {
	Layout    LayoutConfig    `mapstructure:"layout"`
	Target    TargetConfig    `mapstructure:"target"`
	Transform TransformConfig `mapstructure:"transform"`
	Decode    DecodeConfig    `mapstructure:"decode"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// LayoutConfig locates the record layout document
type LayoutConfig struct {
	Path     string `mapstructure:"path"`     // Local path or go-getter URL (https://, s3::, git::)
	Version  string `mapstructure:"version"`  // Layout version, also a semver constraint on record versions (e.g. "12.1")
	Strict   bool   `mapstructure:"strict"`   // Abort on the first malformed layout line
	Encoding string `mapstructure:"encoding"` // Data file encoding: utf-8, latin1, cp1252 or any IANA name
}

// TargetConfig names the warehouse objects the artifacts create
type TargetConfig struct {
	SchemaName string   `mapstructure:"schema_name"`
	TableName  string   `mapstructure:"table_name"`
	ViewName   string   `mapstructure:"view_name"`
	IDColumns  []string `mapstructure:"id_columns"` // Selected on every branch of the EAV view
}

// TransformConfig classifies fields and defines the record key
type TransformConfig struct {
	CodedFieldNames      []string `mapstructure:"coded_field_names"`
	DateFieldNames       []string `mapstructure:"date_field_names"`
	IdentifierFieldNames []string `mapstructure:"identifier_field_names"`
	TextFieldNames       []string `mapstructure:"text_field_names"`
	LegacyDateFieldNames []string `mapstructure:"legacy_date_field_names"` // yymmdd dates from older exports
	ItemTypesFile        string   `mapstructure:"item_types_file"`         // Optional [[item]] name/kind table

	PatientIDField      string   `mapstructure:"patient_id_field"`
	TumorIDField        string   `mapstructure:"tumor_id_field"`
	RecordKeyDateFields []string `mapstructure:"record_key_date_fields"`
	NoDateSentinel      string   `mapstructure:"no_date_sentinel"`
}

// DecodeConfig tunes fixed-width decoding
type DecodeConfig struct {
	Workers      int `mapstructure:"workers"`        // Parallel decode workers (0 = GOMAXPROCS)
	BatchSize    int `mapstructure:"batch_size"`     // Lines per decode/persist batch
	MaxLineBytes int `mapstructure:"max_line_bytes"` // Longest accepted record line
}

// DatabaseConfig configures the SQLite fact sink
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
