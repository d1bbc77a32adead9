package layout

import (
	"sort"

	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// Warning is a non-fatal problem found while building a schema.
type Warning struct {
	ItemCode int      `json:"item_code"`
	Names    []string `json:"names"`
	Message  string   `json:"message"`
}

// Schema is the ordered, immutable set of fields that make up one record.
// Field names are unique. A Schema is safe for concurrent use.
type Schema struct {
	name     string
	version  string
	fields   []Field
	byName   map[string]int
	byCode   map[int][]int
	warnings []Warning
}

// BuildOptions configures Build.
type BuildOptions struct {
	Name    string
	Version string
	Logger  *zap.SugaredLogger
}

// Build assembles fields, in order, into a Schema. A repeated field name
// is a structural error wrapping errors.ErrDuplicateFieldName. A repeated
// item code is tolerated and recorded as a warning.
func Build(fields []Field, opts BuildOptions) (*Schema, error) {
	log := logger.OrNop(opts.Logger)

	s := &Schema{
		name:    opts.Name,
		version: opts.Version,
		fields:  make([]Field, len(fields)),
		byName:  make(map[string]int, len(fields)),
		byCode:  make(map[int][]int, len(fields)),
	}

	for i, f := range fields {
		if f.ItemCode != nil {
			f.ItemCode = ItemCode(*f.ItemCode)
		}
		if prev, dup := s.byName[f.Name]; dup {
			err := errors.Wrapf(errors.ErrDuplicateFieldName, "%q", f.Name)
			return nil, errors.WithDetailf(err, "first defined at line %d, repeated at line %d",
				s.fields[prev].Line, f.Line)
		}
		s.fields[i] = f
		s.byName[f.Name] = i
		if code, ok := f.Code(); ok {
			s.byCode[code] = append(s.byCode[code], i)
		}
	}

	codes := make([]int, 0)
	for code, idx := range s.byCode {
		if len(idx) > 1 {
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)
	for _, code := range codes {
		var names []string
		for _, i := range s.byCode[code] {
			names = append(names, s.fields[i].Name)
		}
		w := Warning{ItemCode: code, Names: names, Message: "item code shared by several fields"}
		s.warnings = append(s.warnings, w)
		log.Warnw("Repeated item code in layout",
			logger.FieldItemCode, code,
			"names", names)
	}

	return s, nil
}

// Name is the schema's name, typically the layout document it came from.
func (s *Schema) Name() string { return s.name }

// Version is the NAACCR layout version the schema was declared for, if any.
func (s *Schema) Version() string { return s.version }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i'th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields in layout order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Decodable returns, in layout order, the fields that take part in
// decoding: non-zero length with an item code.
func (s *Schema) Decodable() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Decodable() {
			out = append(out, f)
		}
	}
	return out
}

// Lookup finds a field by name.
func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// ByItemCode returns the fields carrying code, in layout order.
func (s *Schema) ByItemCode(code int) []Field {
	var out []Field
	for _, i := range s.byCode[code] {
		out = append(out, s.fields[i])
	}
	return out
}

// RecordLength is the highest end column of any field.
func (s *Schema) RecordLength() int {
	max := 0
	for _, f := range s.fields {
		if f.End > max {
			max = f.End
		}
	}
	return max
}

// Warnings returns the non-fatal problems found by Build.
func (s *Schema) Warnings() []Warning {
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}
