package layout

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rwaitman/naaccr-tumor-data/errors"
)

func TestParseFile_Sample(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core).Sugar()

	schema, report, err := ParseFile("testdata/layout_sample.txt", Options{Version: "12.1", Logger: log})
	require.NoError(t, err)

	assert.Equal(t, "layout_sample", schema.Name())
	assert.Equal(t, "12.1", schema.Version())
	assert.Equal(t, 8, report.HeaderLine)
	assert.Equal(t, 11, report.Candidates)
	assert.Equal(t, 10, report.Parsed)
	assert.Equal(t, 10, schema.Len())

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 20, report.Skipped[0].Line)
	assert.Contains(t, report.Skipped[0].Text, "Imaginary Section")

	// Document order, and nothing after the chapter terminator.
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"Record Type", "Registry Type", "Reserved 00", "NAACCR Record Version",
		"Date Case Completed", "Date of Diagnosis", "Patient ID Number",
		"Census Tract 2010", "Sex", "Reserved 01",
	}, names)

	tract, ok := schema.Lookup("Census Tract 2010")
	require.True(t, ok)
	assert.Equal(t, 34, tract.Start)
	assert.Equal(t, 39, tract.End)
	assert.Equal(t, NoteNew, tract.Note)
	assert.Equal(t, 18, tract.Line)

	assert.Len(t, schema.Decodable(), 8)
	assert.Equal(t, 44, schema.RecordLength())

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, 20, report.Warnings[0].ItemCode)
	assert.Equal(t, []string{"Registry Type", "Patient ID Number"}, report.Warnings[0].Names)

	assert.Equal(t, 1, logs.FilterMessage("Skipping malformed layout line").Len())
	assert.Equal(t, 1, logs.FilterMessage("Repeated item code in layout").Len())
}

func TestParse_Strict(t *testing.T) {
	f, err := os.Open("testdata/layout_sample.txt")
	require.NoError(t, err)
	defer f.Close()

	_, _, err = Parse(f, Options{Strict: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedLayoutLine))
	assert.Contains(t, err.Error(), "line 20")
}

func TestParse_FormatDetection(t *testing.T) {
	t.Run("no header", func(t *testing.T) {
		doc := "Chapter 1\n1-1 1 10 Record Type Record ID\n"
		_, _, err := Parse(strings.NewReader(doc), Options{Name: "prose"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrFormatDetection))
		assert.True(t, errors.IsStructuralLayoutError(err))
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("header without rows", func(t *testing.T) {
		doc := "Column # Length Item # Item Name Section Note\nCHAPTER VIII: next\n"
		_, _, err := Parse(strings.NewReader(doc), Options{})
		assert.True(t, errors.Is(err, errors.ErrFormatDetection))
	})
}

func TestParse_DuplicateFieldName(t *testing.T) {
	doc := strings.Join([]string{
		"Column # Length Item # Item Name Section Note",
		"1-1  1  10  Record Type  Record ID",
		"2-2  1  11  Record Type  Record ID",
	}, "\n")

	_, _, err := Parse(strings.NewReader(doc), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateFieldName))
	assert.Contains(t, err.Error(), "Record Type")
	assert.Contains(t, strings.Join(errors.GetAllDetails(err), " "), "repeated at line 3")
}

func TestParse_NormalizesText(t *testing.T) {
	doc := "Column # Length Item # Item Name Section Note\r\n" +
		"1–1 1  10  Record Type  Record ID\r\n"

	schema, _, err := Parse(strings.NewReader(doc), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, schema.Len())
	f := schema.Field(0)
	assert.Equal(t, 1, f.Start)
	assert.Equal(t, 1, f.End)
	assert.Equal(t, "Record Type", f.Name)
}

func TestFindTable(t *testing.T) {
	lines := []string{
		"preamble",
		"Column # Length Item # Item Name Section Note",
		"1-1 1 10 Record Type Record ID",
		"   ",
		"Chapter VII:  Record Layout Table",
		"footnote",
		"CHAPTER VIII: next",
		"2-2 1 20 After Terminator Record ID",
	}
	opts := DefaultScanOptions()

	table, ok := FindTable(lines, opts)
	require.True(t, ok)
	assert.Equal(t, Table{Header: 1, End: 6}, table)

	got := Candidates(lines, table, opts)
	assert.Equal(t, []Line{{Number: 3, Text: "1-1 1 10 Record Type Record ID"}}, got)

	assert.Equal(t, got, Scan(lines, opts), "scan is restartable over the same lines")

	_, ok = FindTable(lines[2:], opts)
	assert.False(t, ok)
	assert.Empty(t, Scan(lines[2:], opts))
}

func TestNormalizeLine(t *testing.T) {
	assert.Equal(t, "428-433 6", NormalizeLine("428–433 6\r"))
	assert.Equal(t, "a b", NormalizeLine("a\tb"))
}
