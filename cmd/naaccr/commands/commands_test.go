package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaitman/naaccr-tumor-data/am"
	"github.com/rwaitman/naaccr-tumor-data/display"
)

// sampleLine fills the sample layout: Record Type, Registry Type, record
// version, Date Case Completed, Date of Diagnosis, Patient ID Number,
// Census Tract 2010, Sex.
const sampleLine = "I1   12" + "20110101  " + "20100315" + "P0000001" + "000100" + "2"

// setupProject creates a project directory holding am.toml and the sample
// layout document, and makes it the working directory.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))

	doc, err := os.ReadFile(filepath.Join("..", "..", "..", "layout", "testdata", "layout_sample.txt"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layout.txt"), doc, am.DefaultFilePermissions))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "am.toml"), []byte(`
[layout]
path = "layout.txt"
`), am.DefaultFilePermissions))

	t.Chdir(dir)
	am.Reset()
	t.Cleanup(am.Reset)
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetArgs(nil)
	})
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestEmitCommand_View(t *testing.T) {
	setupProject(t)
	t.Setenv(display.JSONEnv, "")
	emitOut, emitWatch = "", false

	out := execute(t, EmitCmd, "view")
	assert.True(t, strings.HasPrefix(out, `create or replace view "NAACR"."EXTRACT_EAV" as`))
	assert.Contains(t, out, "'Sex' as ItemName")
	assert.NotContains(t, out, "Reserved 00")
}

func TestEmitCommand_Files(t *testing.T) {
	dir := setupProject(t)
	t.Setenv(display.JSONEnv, "")
	emitWatch = false
	t.Cleanup(func() { emitOut = "" })

	out := execute(t, EmitCmd, "all", "--out", "build")
	assert.Contains(t, out, "naaccr_extract.ctl")

	ctl, err := os.ReadFile(filepath.Join(dir, "build", "naaccr_extract.ctl"))
	require.NoError(t, err)
	assert.Contains(t, string(ctl), "position(")

	sql, err := os.ReadFile(filepath.Join(dir, "build", "naaccr_extract.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(sql), "create table")
	assert.Contains(t, string(sql), "create or replace view")
}

func TestEmitCommand_WatchNeedsOut(t *testing.T) {
	emitOut, emitWatch = "", true
	t.Cleanup(func() { emitWatch = false })

	EmitCmd.SetArgs([]string{"--watch"})
	EmitCmd.SetOut(&bytes.Buffer{})
	t.Cleanup(func() { EmitCmd.SetArgs(nil); EmitCmd.SetOut(nil) })
	err := EmitCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--watch needs --out")
}

func TestDecodeCommand_JSON(t *testing.T) {
	dir := setupProject(t)
	t.Setenv(display.JSONEnv, "1")
	decodeLimit, decodeAll, decodeLayout = 0, false, ""

	extract := filepath.Join(dir, "extract.txt")
	require.NoError(t, os.WriteFile(extract, []byte(sampleLine+"\n\n"+sampleLine+"\n"), am.DefaultFilePermissions))

	out := execute(t, DecodeCmd, extract, "--limit", "1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)

	var row decodedRow
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, 1, row.Line)

	var names []string
	values := map[string]string{}
	for _, f := range row.Fields {
		names = append(names, f.Name)
		values[f.Name] = f.Value
		assert.NotNil(t, f.Item, f.Name)
	}
	assert.Equal(t, []string{
		"Record Type", "Registry Type", "NAACCR Record Version", "Date Case Completed",
		"Date of Diagnosis", "Patient ID Number", "Census Tract 2010", "Sex",
	}, names, "fields keep layout order")
	assert.Equal(t, "2", values["Sex"])
	assert.Equal(t, "P0000001", values["Patient ID Number"])
	assert.Equal(t, "20100315", values["Date of Diagnosis"])
	assert.Equal(t, 220, *row.Fields[len(row.Fields)-1].Item)
}

func TestAmSetAndGet(t *testing.T) {
	dir := setupProject(t)
	t.Setenv(display.JSONEnv, "")
	configFile = "am.toml"

	execute(t, amSetCmd, "decode.workers", "3")
	am.Reset()

	out := execute(t, amGetCmd, "decode.workers")
	assert.Equal(t, "3\n", out)
	assert.FileExists(t, filepath.Join(dir, "am.toml.back1"))

	amGetCmd.SetArgs([]string{"no.such.key"})
	t.Cleanup(func() { amGetCmd.SetArgs(nil) })
	assert.Error(t, amGetCmd.Execute())
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(4), parseValue("4"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "~12.1", parseValue("~12.1"))
	assert.Equal(t, "latin1", parseValue("latin1"))
}

func TestCountRows(t *testing.T) {
	rows := countRows(map[string]int{"unparsable_date": 2, "duplicate_record_key": 1})
	assert.Equal(t, [][]string{{"duplicate_record_key", "1"}, {"unparsable_date", "2"}}, rows)
	assert.Empty(t, countRows(nil))
}
