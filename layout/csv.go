package layout

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

// ReadCSV builds a schema from the spreadsheet export of the layout table:
// a header row, then one row per field with the columns
//
//	Column #, Length, Item #, Item Name, Section, Note
//
// An empty length means zero. Rows are validated the same way ParseLine
// validates text rows, and a bad row is always an error.
func ReadCSV(r io.Reader, opts Options) (*Schema, error) {
	rows := csv.NewReader(r)
	rows.FieldsPerRecord = -1
	rows.TrimLeadingSpace = true

	if _, err := rows.Read(); err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(errors.ErrFormatDetection, "layout CSV is empty")
		}
		return nil, errors.Wrap(err, "failed to read layout CSV header")
	}

	var fields []Field
	for {
		row, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read layout CSV")
		}
		line, _ := rows.FieldPos(0)
		f, err := fieldFromRow(row)
		if err != nil {
			var le *LineError
			if errors.As(err, &le) {
				le.Line = line
			}
			return nil, err
		}
		f.Line = line
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, errors.Wrap(errors.ErrFormatDetection, "layout CSV has no field rows")
	}

	if opts.Name == "" {
		opts.Name = "layout"
	}
	return Build(fields, BuildOptions{Name: opts.Name, Version: opts.Version, Logger: opts.Logger})
}

func fieldFromRow(row []string) (Field, error) {
	text := strings.Join(row, ",")
	if len(row) < 5 {
		return Field{}, malformed(text, "expected at least 5 columns, got %d", len(row))
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	start, end, err := parseColumns(row[0])
	if err != nil {
		return Field{}, malformed(text, "%v", err)
	}

	length := 0
	if row[1] != "" {
		if length, err = parseNumber(row[1]); err != nil {
			return Field{}, malformed(text, "bad length %q", row[1])
		}
	}
	if length != 0 && length != end-start+1 {
		return Field{}, malformed(text, "length %d does not match columns %d-%d", length, start, end)
	}

	var code *int
	if row[2] != "" && !strings.EqualFold(row[2], ReservedItem) {
		n, err := parseNumber(row[2])
		if err != nil {
			return Field{}, malformed(text, "bad item number %q", row[2])
		}
		code = &n
	}

	section := Section(row[4])
	if !section.IsKnown() {
		return Field{}, malformed(text, "unknown section %q", row[4])
	}

	var note Note
	if len(row) > 5 {
		note = Note(row[5])
	}

	return Field{
		Start:    start,
		End:      end,
		Length:   length,
		ItemCode: code,
		Name:     row[3],
		Section:  section,
		Note:     note,
	}, nil
}
