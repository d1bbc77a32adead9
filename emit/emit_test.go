package emit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
)

func testSchema(t *testing.T) *layout.Schema {
	t.Helper()
	s, err := layout.Build([]layout.Field{
		{Start: 1, End: 1, Length: 1, ItemCode: layout.ItemCode(10), Name: "Record Type", Section: layout.SectionRecordID},
		{Start: 2, End: 3, Length: 2, Name: "Reserved 00", Section: layout.SectionRecordID},
		{Start: 4, End: 4, Length: 0, ItemCode: layout.ItemCode(15), Name: "Zero Width", Section: layout.SectionRecordID},
		{Start: 5, End: 13, Length: 9, ItemCode: layout.ItemCode(550), Name: "Accession Number--Hosp", Section: layout.SectionHospitalSpecific},
		{Start: 14, End: 15, Length: 2, ItemCode: layout.ItemCode(560), Name: "Sequence Number--Hospital", Section: layout.SectionHospitalSpecific},
		{Start: 16, End: 16, Length: 1, ItemCode: layout.ItemCode(220), Name: "Sex", Section: layout.SectionDemographic},
		{Start: 17, End: 20, Length: 4, ItemCode: layout.ItemCode(400), Name: "Patient's Site", Section: layout.SectionCancerID},
	}, layout.BuildOptions{Name: "test"})
	require.NoError(t, err)
	return s
}

const wantControl = `LOAD DATA
TRUNCATE
INTO TABLE "NAACR"."EXTRACT" (
"Record Type" position(1:1) CHAR,
"Reserved 00" position(2:3) CHAR,
"Accession Number--Hosp" position(5:13) CHAR,
"Sequence Number--Hospital" position(14:15) CHAR,
"Sex" position(16:16) CHAR,
"Patient's Site" position(17:20) CHAR)
`

const wantTable = `create table "NAACR"."EXTRACT" (
"Record Type" varchar2(1),
"Reserved 00" varchar2(2),
"Accession Number--Hosp" varchar2(9),
"Sequence Number--Hospital" varchar2(2),
"Sex" varchar2(1),
"Patient's Site" varchar2(4)
)
`

var wantView = "create or replace view \"NAACR\".\"EXTRACT_EAV\" as \n" +
	viewBranch(10, "'Record Type'", `"Record Type"`) +
	"\nunion all\n" +
	viewBranch(220, "'Sex'", `"Sex"`) +
	"\nunion all\n" +
	viewBranch(400, "'Patient''s Site'", `"Patient's Site"`) +
	"\nunion all\n" +
	viewBranch(550, "'Accession Number--Hosp'", `"Accession Number--Hosp"`) +
	"\nunion all\n" +
	viewBranch(560, "'Sequence Number--Hospital'", `"Sequence Number--Hospital"`)

func viewBranch(code int, literal, column string) string {
	return "select \"Accession Number--Hosp\", \"Sequence Number--Hospital\", \n" +
		fmt.Sprintf("%d as ItemNbr,\n", code) +
		literal + " as ItemName,\n" +
		column + " as value\n" +
		"from \"NAACR\".\"EXTRACT\"\n"
}

func TestLoadControl(t *testing.T) {
	if diff := cmp.Diff(wantControl, LoadControl(testSchema(t), DefaultNames())); diff != "" {
		t.Errorf("control file mismatch (-want +got):\n%s", diff)
	}
}

func TestTableDDL(t *testing.T) {
	if diff := cmp.Diff(wantTable, TableDDL(testSchema(t), DefaultNames())); diff != "" {
		t.Errorf("table DDL mismatch (-want +got):\n%s", diff)
	}
}

func TestEAVViewDDL(t *testing.T) {
	if diff := cmp.Diff(wantView, EAVViewDDL(testSchema(t), DefaultNames())); diff != "" {
		t.Errorf("view DDL mismatch (-want +got):\n%s", diff)
	}
}

func TestEAVViewDDL_CustomNames(t *testing.T) {
	n := Names{Schema: "tr", Table: "x", View: `x"eav`}
	got := EAVViewDDL(testSchema(t), n)
	assert.Contains(t, got, `create or replace view "tr"."x""eav" as `)
	assert.Contains(t, got, "select \n10 as ItemNbr,")
}

func TestDeterministic(t *testing.T) {
	s := testSchema(t)
	for _, a := range []Artifact{ArtifactControl, ArtifactTable, ArtifactView, ArtifactAll} {
		first, err := Render(s, DefaultNames(), a)
		require.NoError(t, err)
		second, err := Render(s, DefaultNames(), a)
		require.NoError(t, err)
		assert.Equal(t, first, second, a)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := DefaultFiles(dir)

	require.NoError(t, WriteFiles(testSchema(t), DefaultNames(), files))

	ctl, err := os.ReadFile(files.Control)
	require.NoError(t, err)
	assert.Equal(t, wantControl, string(ctl))

	sql, err := os.ReadFile(files.Script)
	require.NoError(t, err)
	assert.Equal(t, wantTable+";\n"+wantView+";\n", string(sql))

	_, err = os.Stat(files.Script + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, testSchema(t), DefaultNames(), ArtifactTable))
	assert.Equal(t, wantTable, buf.String())

	err := WriteTo(&buf, testSchema(t), DefaultNames(), Artifact("xml"))
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestParseArtifact(t *testing.T) {
	a, err := ParseArtifact("view")
	require.NoError(t, err)
	assert.Equal(t, ArtifactView, a)

	_, err = ParseArtifact("csv")
	assert.Error(t, err)
}
