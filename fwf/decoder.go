// Package fwf decodes fixed-width NAACCR records against a layout.Schema.
//
// Columns are byte positions. A field covers the 1-based inclusive range
// [Start, End], which is the 0-based half-open slice [Start-1, End) of the
// raw line; the slice is trimmed of surrounding whitespace. Lines shorter
// than a field's End keep whatever part of the field is present, and a
// field that starts past the end of the line decodes to "".
//
// A Decoder never mutates its schema and may be shared across goroutines.
package fwf

import (
	"strings"

	"golang.org/x/text/encoding"

	"github.com/rwaitman/naaccr-tumor-data/layout"
)

// columns is the decodable part of a schema, shared read-only by a
// Decoder and every Row it produces.
type columns struct {
	fields []layout.Field
	byName map[string]int
	byCode map[int]int
}

func newColumns(schema *layout.Schema) *columns {
	fields := schema.Decodable()
	c := &columns{
		fields: fields,
		byName: make(map[string]int, len(fields)),
		byCode: make(map[int]int, len(fields)),
	}
	for i, f := range fields {
		c.byName[f.Name] = i
		code, _ := f.Code()
		if _, seen := c.byCode[code]; !seen {
			c.byCode[code] = i
		}
	}
	return c
}

// Row is one decoded line: a value per decodable field, in schema order.
type Row struct {
	Line   int // 1-based line number in the data stream, 0 if unknown
	cols   *columns
	values []string
}

// Len is the number of decoded fields.
func (r Row) Len() int { return len(r.values) }

// Field returns the descriptor of the i'th value.
func (r Row) Field(i int) layout.Field { return r.cols.fields[i] }

// Value returns the i'th trimmed value.
func (r Row) Value(i int) string { return r.values[i] }

// Get returns the value of the named field.
func (r Row) Get(name string) (string, bool) {
	if r.cols == nil {
		return "", false
	}
	i, ok := r.cols.byName[name]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// GetItem returns the value of the first field carrying item code.
func (r Row) GetItem(code int) (string, bool) {
	if r.cols == nil {
		return "", false
	}
	i, ok := r.cols.byCode[code]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Map returns the row as field name to value, blanks included.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, v := range r.values {
		m[r.cols.fields[i].Name] = v
	}
	return m
}

// Decoder slices fixed-width lines into Rows.
type Decoder struct {
	cols *columns
	enc  encoding.Encoding
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithEncoding transcodes each field value from enc to UTF-8 after
// slicing. Slicing itself always works on raw bytes.
func WithEncoding(enc encoding.Encoding) Option {
	return func(d *Decoder) { d.enc = enc }
}

// NewDecoder prepares a decoder for schema.
func NewDecoder(schema *layout.Schema, opts ...Option) *Decoder {
	d := &Decoder{cols: newColumns(schema)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fields returns the decodable fields in the order values appear in a Row.
func (d *Decoder) Fields() []layout.Field {
	out := make([]layout.Field, len(d.cols.fields))
	copy(out, d.cols.fields)
	return out
}

// Decode slices one line. It never fails: a short line yields empty
// values for the missing fields.
func (d *Decoder) Decode(line string) Row {
	line = strings.TrimRight(line, "\r\n")
	values := make([]string, len(d.cols.fields))
	for i, f := range d.cols.fields {
		values[i] = d.transcode(slice(line, f.Start, f.End))
	}
	return Row{cols: d.cols, values: values}
}

// DecodeLine is Decode with the line number recorded on the Row.
func (d *Decoder) DecodeLine(n int, line string) Row {
	row := d.Decode(line)
	row.Line = n
	return row
}

func (d *Decoder) transcode(v string) string {
	if d.enc == nil || isASCII(v) {
		return v
	}
	out, err := d.enc.NewDecoder().String(v)
	if err != nil {
		return v
	}
	return out
}

// slice returns the trimmed text of 1-based inclusive columns [start, end].
func slice(line string, start, end int) string {
	lo := start - 1
	if lo >= len(line) || lo < 0 {
		return ""
	}
	hi := end
	if hi > len(line) {
		hi = len(line)
	}
	return strings.TrimSpace(line[lo:hi])
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Decode is a one-off decode of line against schema.
func Decode(schema *layout.Schema, line string) Row {
	return NewDecoder(schema).Decode(line)
}
