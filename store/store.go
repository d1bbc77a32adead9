// Package store persists layouts, EAV facts and anomalies to SQLite.
//
// The store is an outer collaborator of the transform: eav produces facts
// as plain values and knows nothing about storage. Every ingest run is an
// ingest batch identified by a UUID; facts and anomalies hang off it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/db"
	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
	"github.com/rwaitman/naaccr-tumor-data/logger"
)

// Batch status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// PersistenceResult contains the results of a batch persistence operation
type PersistenceResult struct {
	PersistedCount int      `json:"persisted_count"`
	FailureCount   int      `json:"failure_count"`
	Errors         []string `json:"errors,omitempty"`
	SuccessRate    float64  `json:"success_rate"`
}

// maxReportedErrors caps PersistenceResult.Errors; FailureCount keeps counting.
const maxReportedErrors = 20

// BatchCounts are the totals recorded when a batch finishes.
type BatchCounts struct {
	LinesRead    int `json:"lines_read"`
	RowsDecoded  int `json:"rows_decoded"`
	FactsWritten int `json:"facts_written"`
	Anomalies    int `json:"anomalies"`
}

// Batch is one recorded ingest run.
type Batch struct {
	ID         string     `json:"id"`
	LayoutID   string     `json:"layout_id,omitempty"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	BatchCounts
}

// FactStore writes and summarizes ingest data.
type FactStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// NewFactStore wraps an open, migrated database.
func NewFactStore(conn *sql.DB, log *zap.SugaredLogger) *FactStore {
	return &FactStore{db: conn, log: logger.OrNop(log), now: time.Now}
}

// logFor carries the context's logging fields, with batchID taking
// precedence over any batch already in ctx.
func (s *FactStore) logFor(ctx context.Context, batchID string) *zap.SugaredLogger {
	return logger.ChildLogger(s.log, logger.FieldsFromContext(logger.WithBatchID(ctx, batchID))...)
}

// SaveLayout records a schema and its fields and returns the layout ID.
func (s *FactStore) SaveLayout(ctx context.Context, schema *layout.Schema) (string, error) {
	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin layout tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO layouts (id, name, version, field_count, record_length) VALUES (?, ?, ?, ?, ?)`,
		id, schema.Name(), schema.Version(), schema.Len(), schema.RecordLength())
	if err != nil {
		return "", errors.Wrap(err, "insert layout")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO layout_fields (layout_id, position, name, start_col, end_col, length, item_code, section, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.Wrap(err, "prepare layout fields")
	}
	defer stmt.Close()

	for i, f := range schema.Fields() {
		var code sql.NullInt64
		if c, ok := f.Code(); ok {
			code = sql.NullInt64{Int64: int64(c), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, f.Name, f.Start, f.End, f.Length, code, string(f.Section), string(f.Note)); err != nil {
			return "", errors.Wrapf(err, "insert layout field %q", f.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit layout")
	}
	s.log.Infow("Saved layout", "layout_id", id, logger.FieldCount, schema.Len())
	return id, nil
}

// BeginBatch opens an ingest batch. layoutID may be empty.
func (s *FactStore) BeginBatch(ctx context.Context, layoutID, source string) (string, error) {
	id := uuid.New().String()
	var lid sql.NullString
	if layoutID != "" {
		lid = sql.NullString{String: layoutID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_batches (id, layout_id, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, lid, source, StatusRunning, s.now().UTC())
	if err != nil {
		return "", errors.Wrapf(err, "begin batch for %s", source)
	}
	s.log.Debugw("Began ingest batch", logger.FieldBatchID, id, logger.FieldFile, source)
	return id, nil
}

// InsertFacts writes facts in one transaction through a prepared
// statement. A fact the database rejects is counted and skipped; the rest
// are still committed.
func (s *FactStore) InsertFacts(ctx context.Context, batchID string, facts []eav.Fact) (*PersistenceResult, error) {
	result := &PersistenceResult{}
	if len(facts) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin facts tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tumor_facts (batch_id, record_id, item_code, item_name, kind, value, date_value, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare facts insert")
	}
	defer stmt.Close()

	for _, f := range facts {
		var date sql.NullString
		if f.Date != nil {
			date = sql.NullString{String: f.Date.Format(eav.ISODate), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, batchID, f.RecordID, f.ItemCode, f.ItemName, string(f.Kind), f.Value, date, f.Line)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "insert facts")
			}
			if db.IsDatabaseClosed(err) {
				return nil, errors.Wrapf(db.ErrDatabaseClosed, "insert facts: %v", err)
			}
			result.FailureCount++
			if len(result.Errors) < maxReportedErrors {
				reason := "failed"
				if db.IsConstraintViolation(err) {
					reason = "rejected"
				}
				result.Errors = append(result.Errors,
					fmt.Sprintf("Fact %s #%d at line %d %s: %v", f.RecordID, f.ItemCode, f.Line, reason, err))
			}
			continue
		}
		result.PersistedCount++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit facts")
	}

	result.SuccessRate = float64(result.PersistedCount) / float64(len(facts)) * 100
	s.logFor(ctx, batchID).Debugw("Persisted facts",
		logger.FieldCount, result.PersistedCount,
		"failed", result.FailureCount)
	return result, nil
}

// RecordAnomalies stores data-quality findings for a batch.
func (s *FactStore) RecordAnomalies(ctx context.Context, batchID string, anomalies []eav.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin anomalies tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO anomalies (batch_id, kind, patient_id, tumor_id, record_ids, lines, field, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare anomalies insert")
	}
	defer stmt.Close()

	for _, a := range anomalies {
		ids, err := json.Marshal(nonNil(a.RecordIDs))
		if err != nil {
			return errors.Wrap(err, "encode record ids")
		}
		lines, err := json.Marshal(nonNilInts(a.Lines))
		if err != nil {
			return errors.Wrap(err, "encode lines")
		}
		if _, err := stmt.ExecContext(ctx, batchID, string(a.Kind), a.Key.PatientID, a.Key.TumorID,
			string(ids), string(lines), a.Field, a.Value); err != nil {
			return errors.Wrapf(err, "insert %s anomaly", a.Kind)
		}
	}
	return errors.Wrap(tx.Commit(), "commit anomalies")
}

// FinishBatch records final counts and status.
func (s *FactStore) FinishBatch(ctx context.Context, batchID, status string, counts BatchCounts) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_batches
		 SET status = ?, finished_at = ?, lines_read = ?, rows_decoded = ?, facts_written = ?, anomaly_count = ?
		 WHERE id = ?`,
		status, s.now().UTC(), counts.LinesRead, counts.RowsDecoded, counts.FactsWritten, counts.Anomalies, batchID)
	if err != nil {
		return errors.Wrapf(err, "finish batch %s", batchID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("ingest batch %s", batchID)
	}
	s.logFor(ctx, batchID).Infow("Finished ingest batch",
		"status", status,
		"facts", counts.FactsWritten,
		"anomalies", counts.Anomalies)
	return nil
}

// Batch loads one ingest batch.
func (s *FactStore) Batch(ctx context.Context, id string) (*Batch, error) {
	var b Batch
	var layoutID sql.NullString
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, layout_id, source, status, started_at, finished_at,
		        lines_read, rows_decoded, facts_written, anomaly_count
		 FROM ingest_batches WHERE id = ?`, id).
		Scan(&b.ID, &layoutID, &b.Source, &b.Status, &b.StartedAt, &finished,
			&b.LinesRead, &b.RowsDecoded, &b.FactsWritten, &b.Anomalies)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("ingest batch %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load batch %s", id)
	}
	b.LayoutID = layoutID.String
	if finished.Valid {
		b.FinishedAt = &finished.Time
	}
	return &b, nil
}

// Stats summarizes everything stored.
type Stats struct {
	Layouts   int            `json:"layouts"`
	Batches   int            `json:"batches"`
	Facts     int            `json:"facts"`
	Records   int            `json:"records"`
	Anomalies map[string]int `json:"anomalies"`
	ByKind    map[string]int `json:"facts_by_kind"`
}

// Stats counts layouts, batches, facts and anomalies.
func (s *FactStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Anomalies: map[string]int{}, ByKind: map[string]int{}}
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM layouts`, &st.Layouts},
		{`SELECT COUNT(*) FROM ingest_batches`, &st.Batches},
		{`SELECT COUNT(*) FROM tumor_facts`, &st.Facts},
		{`SELECT COUNT(DISTINCT record_id) FROM tumor_facts`, &st.Records},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, errors.Wrapf(err, "query %s", c.query)
		}
	}
	if err := s.groupCount(ctx, `SELECT kind, COUNT(*) FROM tumor_facts GROUP BY kind`, st.ByKind); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT kind, COUNT(*) FROM anomalies GROUP BY kind`, st.Anomalies); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *FactStore) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return errors.Wrapf(err, "query %s", query)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return errors.Wrap(err, "scan count")
		}
		into[k] = n
	}
	return rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
