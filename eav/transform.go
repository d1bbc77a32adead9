// Package eav reshapes decoded NAACCR rows into entity-attribute-value facts.
//
// Each populated coded, date or text field of a row becomes one Fact keyed
// by a record ID. The two natural identifiers, patient and tumor, are not
// unique across tumors in real extracts, so the record ID also carries the
// diagnosis and case-completed dates. Rows that still collide on the
// natural key are reported by DuplicateDetector.
package eav

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	"github.com/rwaitman/naaccr-tumor-data/layout"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// Fact is one (record, item, value) triple.
type Fact struct {
	RecordID string     `json:"record_id"`
	ItemCode int        `json:"item_code"`
	ItemName string     `json:"item_name"`
	Kind     ItemKind   `json:"kind"`
	Value    string     `json:"value"`
	Date     *time.Time `json:"date,omitempty"`
	Line     int        `json:"line,omitempty"`
}

// RecordKey is the natural key of a tumor record.
type RecordKey struct {
	PatientID string `json:"patient_id"`
	TumorID   string `json:"tumor_id"`
}

// RowInfo describes the record a row was keyed as.
type RowInfo struct {
	Line     int       `json:"line"`
	Key      RecordKey `json:"key"`
	RecordID string    `json:"record_id"`
	Issues   []Anomaly `json:"issues,omitempty"`
}

// Config names the fields that make up the record ID.
type Config struct {
	PatientIDField string
	TumorIDField   string
	KeyDateFields  []string
	NoDateSentinel string
}

// DefaultConfig keys records by Patient System ID-Hosp and Tumor Record
// Number, widened by the diagnosis and case-completed dates.
func DefaultConfig() Config {
	return Config{
		PatientIDField: "Patient System ID-Hosp",
		TumorIDField:   "Tumor Record Number",
		KeyDateFields:  []string{"Date of Diagnosis", "Date Case Completed"},
		NoDateSentinel: NoDateSentinel,
	}
}

// Transformer turns rows into facts. It holds no per-row state and may be
// shared across goroutines.
type Transformer struct {
	cfg        Config
	classifier *Classifier
	log        *zap.SugaredLogger
}

// NewTransformer checks cfg against schema and returns a transformer.
// Every key field must name a decodable field of schema; a misspelled key
// would otherwise give every row the same record ID. Classified names the
// schema lacks are only logged.
func NewTransformer(schema *layout.Schema, classifier *Classifier, cfg Config, log *zap.SugaredLogger) (*Transformer, error) {
	if schema == nil || classifier == nil {
		return nil, errors.NewInvalidRequestError("transformer needs a schema and a classifier")
	}
	if cfg.PatientIDField == "" || cfg.TumorIDField == "" {
		return nil, errors.NewInvalidRequestError("patient and tumor id fields are required")
	}
	if cfg.NoDateSentinel == "" {
		cfg.NoDateSentinel = NoDateSentinel
	}
	if err := checkKeyFields(schema, cfg); err != nil {
		return nil, err
	}

	log = logger.OrNop(log)
	if missing := classifier.Missing(schema); len(missing) > 0 {
		log.Warnw("Classified fields not in layout",
			logger.FieldLayout, schema.Name(),
			logger.FieldCount, len(missing),
			"fields", missing)
	}
	return &Transformer{cfg: cfg, classifier: classifier, log: log}, nil
}

// keyField is a record key field and the setting that names it.
type keyField struct {
	setting string
	name    string
}

func checkKeyFields(schema *layout.Schema, cfg Config) error {
	keys := []keyField{
		{"transform.patient_id_field", cfg.PatientIDField},
		{"transform.tumor_id_field", cfg.TumorIDField},
	}
	for _, name := range cfg.KeyDateFields {
		keys = append(keys, keyField{"transform.record_key_date_fields", name})
	}

	for _, k := range keys {
		if f, ok := schema.Lookup(k.name); ok && f.Length > 0 {
			continue
		}
		err := errors.NewInvalidRequestError("record key field %q is not in layout %s", k.name, schema.Name())
		return errors.WithHintf(err, "set %s to a field name from 'naaccr layout parse'", k.setting)
	}
	return nil
}

// Key returns the natural key of row.
func (t *Transformer) Key(row fwf.Row) RecordKey {
	patient, _ := row.Get(t.cfg.PatientIDField)
	tumor, _ := row.Get(t.cfg.TumorIDField)
	return RecordKey{PatientID: patient, TumorID: tumor}
}

// RecordID concatenates the patient ID, the tumor ID and each key date as
// yyyy-mm-dd, with the sentinel for a date that is blank or unparsable.
func (t *Transformer) RecordID(row fwf.Row) string {
	key := t.Key(row)
	var b strings.Builder
	b.WriteString(key.PatientID)
	b.WriteString(key.TumorID)
	for _, name := range t.cfg.KeyDateFields {
		raw, _ := row.Get(name)
		b.WriteString(FormatKeyDate(raw, t.cfg.NoDateSentinel))
	}
	return b.String()
}

// Facts emits one fact per populated coded, date or text field, in schema
// order. Blank values are never emitted. A non-blank date that does not
// parse is still emitted with its raw value, and reported in RowInfo.
func (t *Transformer) Facts(row fwf.Row) ([]Fact, RowInfo) {
	info := RowInfo{Line: row.Line, Key: t.Key(row), RecordID: t.RecordID(row)}

	var facts []Fact
	for i := 0; i < row.Len(); i++ {
		value := strings.TrimSpace(row.Value(i))
		if value == "" {
			continue
		}
		f := row.Field(i)
		kind := t.classifier.Kind(f.Name)
		if !kind.Emitted() {
			continue
		}
		code, _ := f.Code()
		fact := Fact{
			RecordID: info.RecordID,
			ItemCode: code,
			ItemName: f.Name,
			Kind:     kind,
			Value:    value,
			Line:     row.Line,
		}
		if kind == KindDate || kind == KindLegacyDate {
			if d, ok := parseFactDate(kind, value); ok {
				fact.Date = &d
			} else {
				info.Issues = append(info.Issues, Anomaly{
					Kind:      AnomalyUnparsableDate,
					Key:       info.Key,
					RecordIDs: []string{info.RecordID},
					Lines:     []int{row.Line},
					Field:     f.Name,
					Value:     value,
				})
			}
		}
		facts = append(facts, fact)
	}

	if len(info.Issues) > 0 {
		t.log.Debugw("Unparsable dates in record",
			logger.FieldLine, row.Line,
			logger.FieldRecordID, info.RecordID,
			logger.FieldCount, len(info.Issues))
	}
	return facts, info
}

func parseFactDate(kind ItemKind, value string) (time.Time, bool) {
	if kind == KindLegacyDate {
		d, err := ParseLegacyDate(value)
		return d, err == nil
	}
	return ParseDate(value)
}

// Transform runs Facts over rows in order and feeds each row's key to det,
// if given. Per-row issues are returned alongside the facts.
func (t *Transformer) Transform(rows []fwf.Row, det *DuplicateDetector) ([]Fact, []Anomaly) {
	var facts []Fact
	var issues []Anomaly
	for _, row := range rows {
		f, info := t.Facts(row)
		facts = append(facts, f...)
		issues = append(issues, info.Issues...)
		if det != nil {
			det.Observe(info)
		}
	}
	return facts, issues
}
