package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	testdb "github.com/rwaitman/naaccr-tumor-data/internal/testing"
	"github.com/rwaitman/naaccr-tumor-data/layout"
)

func testSchema(t *testing.T) *layout.Schema {
	t.Helper()
	s, err := layout.Build([]layout.Field{
		{Start: 1, End: 1, Length: 1, ItemCode: layout.ItemCode(10), Name: "Record Type", Section: layout.SectionRecordID},
		{Start: 2, End: 3, Length: 2, Name: "Reserved 00", Section: layout.SectionRecordID},
		{Start: 4, End: 11, Length: 8, ItemCode: layout.ItemCode(390), Name: "Date of Diagnosis", Section: layout.SectionCancerID},
	}, layout.BuildOptions{Name: "test", Version: "12.1"})
	require.NoError(t, err)
	return s
}

func sampleFacts() []eav.Fact {
	d := time.Date(2010, time.March, 15, 0, 0, 0, 0, time.UTC)
	return []eav.Fact{
		{RecordID: "P1T12010-03-150000-00-00", ItemCode: 220, ItemName: "Sex", Kind: eav.KindCoded, Value: "1", Line: 1},
		{RecordID: "P1T12010-03-150000-00-00", ItemCode: 390, ItemName: "Date of Diagnosis", Kind: eav.KindDate, Value: "20100315", Date: &d, Line: 1},
		{RecordID: "P2T10000-00-000000-00-00", ItemCode: 390, ItemName: "Date of Diagnosis", Kind: eav.KindDate, Value: "2010XX15", Line: 2},
	}
}

func TestFactStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testdb.CreateTestDB(t)
	s := NewFactStore(db, zaptest.NewLogger(t).Sugar())

	layoutID, err := s.SaveLayout(ctx, testSchema(t))
	require.NoError(t, err)
	assert.Len(t, layoutID, 36)

	var nullCodes int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM layout_fields WHERE layout_id = ? AND item_code IS NULL`, layoutID).Scan(&nullCodes))
	assert.Equal(t, 1, nullCodes)

	batchID, err := s.BeginBatch(ctx, layoutID, "extract.txt")
	require.NoError(t, err)

	res, err := s.InsertFacts(ctx, batchID, sampleFacts())
	require.NoError(t, err)
	assert.Equal(t, 3, res.PersistedCount)
	assert.Zero(t, res.FailureCount)
	assert.Equal(t, 100.0, res.SuccessRate)

	var dateValue sql.NullString
	require.NoError(t, db.QueryRow(`SELECT date_value FROM tumor_facts WHERE value = '20100315'`).Scan(&dateValue))
	assert.Equal(t, "2010-03-15", dateValue.String)
	require.NoError(t, db.QueryRow(`SELECT date_value FROM tumor_facts WHERE value = '2010XX15'`).Scan(&dateValue))
	assert.False(t, dateValue.Valid)

	err = s.RecordAnomalies(ctx, batchID, []eav.Anomaly{
		{Kind: eav.AnomalyDuplicateRecordKey, Key: eav.RecordKey{PatientID: "P1", TumorID: "T1"},
			RecordIDs: []string{"a", "b"}, Lines: []int{1, 5}},
		{Kind: eav.AnomalyUnparsableDate, Field: "Date of Diagnosis", Value: "2010XX15"},
	})
	require.NoError(t, err)

	var ids, lines string
	require.NoError(t, db.QueryRow(`SELECT record_ids, lines FROM anomalies WHERE kind = 'unparsable_date'`).Scan(&ids, &lines))
	assert.Equal(t, "[]", ids)
	assert.Equal(t, "[]", lines)

	counts := BatchCounts{LinesRead: 2, RowsDecoded: 2, FactsWritten: 3, Anomalies: 2}
	require.NoError(t, s.FinishBatch(ctx, batchID, StatusComplete, counts))

	b, err := s.Batch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, layoutID, b.LayoutID)
	assert.Equal(t, "extract.txt", b.Source)
	assert.Equal(t, StatusComplete, b.Status)
	assert.Equal(t, counts, b.BatchCounts)
	require.NotNil(t, b.FinishedAt)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Layouts)
	assert.Equal(t, 1, st.Batches)
	assert.Equal(t, 3, st.Facts)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, map[string]int{"coded": 1, "date": 2}, st.ByKind)
	assert.Equal(t, map[string]int{"duplicate_record_key": 1, "unparsable_date": 1}, st.Anomalies)
}

func TestFactStore_BlankValueCountedAsFailure(t *testing.T) {
	ctx := context.Background()
	s := NewFactStore(testdb.CreateTestDB(t), nil)

	batchID, err := s.BeginBatch(ctx, "", "extract.txt")
	require.NoError(t, err)

	facts := sampleFacts()
	facts[0].Value = "   "
	res, err := s.InsertFacts(ctx, batchID, facts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PersistedCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "line 1")
	assert.Contains(t, res.Errors[0], "rejected")
	assert.InDelta(t, 66.67, res.SuccessRate, 0.01)
}

func TestFactStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewFactStore(testdb.CreateTestDB(t), nil)

	_, err := s.Batch(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))

	err = s.FinishBatch(ctx, "missing", StatusFailed, BatchCounts{})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestFactStore_EmptyInputs(t *testing.T) {
	s := NewFactStore(nil, nil)

	res, err := s.InsertFacts(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.Zero(t, res.PersistedCount)
	assert.NoError(t, s.RecordAnomalies(context.Background(), "b", nil))
}

func TestInsertFacts_StatementShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	facts := sampleFacts()[:2]
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO tumor_facts")
	prep.ExpectExec().
		WithArgs("batch-1", facts[0].RecordID, 220, "Sex", "coded", "1", nil, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("batch-1", facts[1].RecordID, 390, "Date of Diagnosis", "date", "20100315", "2010-03-15", 1).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	s := NewFactStore(db, nil)
	res, err := s.InsertFacts(context.Background(), "batch-1", facts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PersistedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFacts_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO tumor_facts").ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	s := NewFactStore(db, nil)
	_, err = s.InsertFacts(context.Background(), "batch-1", sampleFacts()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit facts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
