package ix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	testdb "github.com/rwaitman/naaccr-tumor-data/internal/testing"
	"github.com/rwaitman/naaccr-tumor-data/layout"
	"github.com/rwaitman/naaccr-tumor-data/store"
)

func testSchema(t *testing.T) *layout.Schema {
	t.Helper()
	f := func(start, end, code int, name string) layout.Field {
		return layout.Field{Start: start, End: end, Length: end - start + 1,
			ItemCode: layout.ItemCode(code), Name: name, Section: layout.SectionRecordID}
	}
	s, err := layout.Build([]layout.Field{
		f(1, 3, 50, "NAACCR Record Version"),
		f(4, 7, 21, "Patient System ID-Hosp"),
		f(8, 9, 60, "Tumor Record Number"),
		f(10, 17, 390, "Date of Diagnosis"),
		f(18, 25, 2090, "Date Case Completed"),
		f(26, 26, 220, "Sex"),
	}, layout.BuildOptions{Name: "test", Version: "12.1"})
	require.NoError(t, err)
	return s
}

func line(version, patient, tumor, dx, completed, sex string) string {
	return fmt.Sprintf("%-3s%-4s%-2s%-8s%-8s%-1s", version, patient, tumor, dx, completed, sex)
}

// extract has two rows sharing a natural key, one unparsable date, a blank
// line and a row from a newer record version.
func extract() string {
	return strings.Join([]string{
		line("121", "P001", "01", "20100315", "20100401", "1"),
		line("121", "P001", "01", "20110101", "20110201", "2"),
		"",
		line("121", "P002", "01", "2010XX15", "", "1"),
		line("180", "P003", "01", "20100101", "", "2"),
	}, "\n") + "\n"
}

func testOptions(t *testing.T) Options {
	t.Helper()
	c, err := eav.NewClassifier(eav.ClassifierConfig{
		Coded:      []string{"Sex"},
		Date:       []string{"Date of Diagnosis", "Date Case Completed"},
		Identifier: []string{"Patient System ID-Hosp", "Tumor Record Number"},
	}, nil)
	require.NoError(t, err)
	tr, err := eav.NewTransformer(testSchema(t), c, eav.DefaultConfig(), nil)
	require.NoError(t, err)
	vc, err := fwf.NewVersionCheck("~12.1")
	require.NoError(t, err)
	return Options{
		Decoder:     fwf.NewDecoder(testSchema(t)),
		Transformer: tr,
		Version:     vc,
		BatchSize:   2,
		Workers:     2,
		Logger:      zaptest.NewLogger(t).Sugar(),
	}
}

func anomalyKinds(as []eav.Anomaly) []eav.AnomalyKind {
	var kinds []eav.AnomalyKind
	for _, a := range as {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestPipeline_DryRun(t *testing.T) {
	opts := testOptions(t)
	opts.KeepFacts = true
	p, err := New(opts)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), strings.NewReader(extract()), "extract.txt")
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, "dry-run", res.Op)
	assert.Empty(t, res.BatchID)
	assert.Equal(t, 5, res.Stats.LinesRead)
	assert.Equal(t, 4, res.Stats.RowsDecoded)
	assert.Equal(t, 1, res.Stats.RowsRejected)
	assert.Equal(t, 8, res.Stats.FactsEmitted)
	assert.Zero(t, res.Stats.FactsWritten)
	assert.Len(t, res.Facts, 8)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CodeVersionMismatch, res.Warnings[0].Code)
	assert.Equal(t, 5, res.Warnings[0].Line)

	assert.Equal(t, []eav.AnomalyKind{eav.AnomalyDuplicateRecordKey, eav.AnomalyUnparsableDate}, anomalyKinds(res.Anomalies))
	assert.Equal(t, []int{1, 2}, res.Anomalies[0].Lines)
	assert.Equal(t, 2, res.Stats.Anomalies)

	for _, f := range res.Facts {
		assert.NotEmpty(t, strings.TrimSpace(f.Value))
		assert.NotEqual(t, "Patient System ID-Hosp", f.ItemName)
	}
}

func TestPipeline_DuplicatesAcrossBatches(t *testing.T) {
	// Rows sharing a key land in different batches and are still reported.
	opts := testOptions(t)
	opts.BatchSize = 1
	p, err := New(opts)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), strings.NewReader(extract()), "extract.txt")
	require.NoError(t, err)
	assert.Contains(t, anomalyKinds(res.Anomalies), eav.AnomalyDuplicateRecordKey)
}

func TestPipeline_Persist(t *testing.T) {
	ctx := context.Background()
	db := testdb.CreateTestDB(t)
	fs := store.NewFactStore(db, nil)

	layoutID, err := fs.SaveLayout(ctx, testSchema(t))
	require.NoError(t, err)

	opts := testOptions(t)
	opts.Sink = fs
	opts.LayoutID = layoutID
	p, err := New(opts)
	require.NoError(t, err)

	res, err := p.Run(ctx, strings.NewReader(extract()), "extract.txt")
	require.NoError(t, err)
	require.NotEmpty(t, res.BatchID)
	assert.Equal(t, 8, res.Stats.FactsWritten)
	assert.Zero(t, res.Stats.FactsFailed)

	b, err := fs.Batch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusComplete, b.Status)
	assert.Equal(t, 8, b.FactsWritten)
	assert.Equal(t, 2, b.Anomalies)
	assert.Equal(t, 4, b.RowsDecoded)

	st, err := fs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, st.Facts)
	assert.Equal(t, 3, st.Records)
	assert.Equal(t, 1, st.Anomalies["unparsable_date"])
}

// cancelEmitter cancels the run after the first batch.
type cancelEmitter struct {
	NopEmitter
	cancel context.CancelFunc
}

func (e cancelEmitter) EmitProgress(int, map[string]interface{}) { e.cancel() }

func TestPipeline_Cancelled(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFactStore(testdb.CreateTestDB(t), nil)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := testOptions(t)
	opts.Sink = fs
	opts.Emitter = cancelEmitter{cancel: cancel}
	p, err := New(opts)
	require.NoError(t, err)

	res, err := p.Run(cctx, strings.NewReader(extract()), "extract.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.True(t, res.HasErrors())
	assert.Equal(t, 2, res.Stats.RowsDecoded)

	b, err := fs.Batch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, b.Status)
	assert.Equal(t, 6, b.FactsWritten)
}

func TestPipeline_ReadError(t *testing.T) {
	opts := testOptions(t)
	opts.MaxLineBytes = 16
	core, logs := observer.New(zap.ErrorLevel)
	opts.Logger = zap.New(core).Sugar()
	p, err := New(opts)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), strings.NewReader(extract()), "extract.txt")
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Ingest aborted").Len())
}

func TestPipeline_JSONProgress(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(t)
	opts.Emitter = NewJSONEmitter(&buf)
	p, err := New(opts)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), strings.NewReader(extract()), "extract.txt")
	require.NoError(t, err)

	var types []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var ev ProgressEvent
		require.NoError(t, dec.Decode(&ev))
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "stage", types[0])
	assert.Equal(t, []string{"anomalies", "complete"}, types[len(types)-2:])
	assert.Contains(t, types, "progress")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.IsInvalidRequestError(err))
}
