package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Field
	}{
		{
			name: "record type",
			line: "1-1   1  10  Record Type  Record ID",
			want: Field{Start: 1, End: 1, Length: 1, ItemCode: ItemCode(10),
				Name: "Record Type", Section: SectionRecordID},
		},
		{
			name: "census tract with note",
			line: "428-433   6  135  Census Tract 2010  Demographic  New",
			want: Field{Start: 428, End: 433, Length: 6, ItemCode: ItemCode(135),
				Name: "Census Tract 2010", Section: SectionDemographic, Note: NoteNew},
		},
		{
			name: "reserved item",
			line: "  1551-1650   100  Reserved   Reserved 11   Special Use",
			want: Field{Start: 1551, End: 1650, Length: 100,
				Name: "Reserved 11", Section: SectionSpecialUse},
		},
		{
			name: "thousands separator in item number",
			line: "8-17  10  2,090  Date Case Completed  Edit Overrides/Conversion History/System Admin",
			want: Field{Start: 8, End: 17, Length: 10, ItemCode: ItemCode(2090),
				Name: "Date Case Completed", Section: SectionEditOverrides},
		},
		{
			name: "zero length",
			line: "44-44  0  Reserved  Reserved 01  Special Use",
			want: Field{Start: 44, End: 44, Length: 0,
				Name: "Reserved 01", Section: SectionSpecialUse},
		},
		{
			name: "section with ampersand and subfield note",
			line: "1200-1207\t8\t1280\tRX Date--Other\tTreatment-Subsequent & Other\tSubfield",
			want: Field{Start: 1200, End: 1207, Length: 8, ItemCode: ItemCode(1280),
				Name: "RX Date--Other", Section: SectionTreatmentOther, Note: NoteSubfield},
		},
		{
			name: "trailing whitespace",
			line: "40-40  1  220  Sex  Demographic   \t ",
			want: Field{Start: 40, End: 40, Length: 1, ItemCode: ItemCode(220),
				Name: "Sex", Section: SectionDemographic},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"unknown section", "41-43  3  999  Bogus Item  Imaginary Section", "unknown section"},
		{"section must start a token", "1-1  1  10  Record TypeRecord ID", "unknown section"},
		{"too few tokens", "1-1  1  Record ID", "expected column range"},
		{"bad column range", "1/1  1  10  Record Type  Record ID", "bad column range"},
		{"reversed range", "9-3  1  10  Record Type  Record ID", "out of order"},
		{"bad length", "1-1  x  10  Record Type  Record ID", "bad length"},
		{"length mismatch", "1-4  3  10  Record Type  Record ID", "does not match"},
		{"bad item number", "1-1  1  ten  Record Type  Record ID", "bad item number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedLayoutLine))

			var le *LineError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.line, le.Text, "original text is retained")
			assert.Contains(t, le.Reason, tt.reason)
		})
	}
}

func TestParseLine_RoundTrip(t *testing.T) {
	lines := []string{
		"1-1   1  10  Record Type  Record ID",
		"428-433   6  135  Census Tract 2010  Demographic  New",
		"1551-1650   100  Reserved   Reserved 11   Special Use",
		"2340-2341   2  2,90  Bad Separator Still Parses  Pathology",
	}

	for _, line := range lines {
		f, err := ParseLine(line)
		require.NoError(t, err, line)

		columns, length, item := f.Tokens()
		raw := strings.Fields(line)
		assert.Equal(t, raw[0], columns)
		assert.Equal(t, raw[1], length)
		assert.Equal(t, strings.ReplaceAll(raw[2], ",", ""), item)
	}
}

func TestParseLine_LengthInvariant(t *testing.T) {
	f, err := ParseLine("34-39  6  135  Census Tract 2010  Demographic")
	require.NoError(t, err)
	assert.True(t, f.Length == 0 || f.Length == f.End-f.Start+1)
	assert.Equal(t, f.Width(), f.Length)
}

func TestLineError(t *testing.T) {
	err := &LineError{Line: 20, Text: "x", Reason: "unknown section"}
	assert.Equal(t, `line 20: unknown section: "x"`, err.Error())

	err.Line = 0
	assert.Equal(t, `unknown section: "x"`, err.Error())
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"1-1", "1", "10", "Record  Type"}, splitFields("  1-1 1\t10  Record  Type ", 4))
	assert.Equal(t, []string{"1-1", "1"}, splitFields("1-1 1", 4))
	assert.Nil(t, splitFields("   ", 4))
}
