package ix

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rwaitman/naaccr-tumor-data/eav"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/fwf"
	"github.com/rwaitman/naaccr-tumor-data/logger"
	"github.com/rwaitman/naaccr-tumor-data/store"
)

// DefaultBatchSize is the number of lines decoded and persisted together.
const DefaultBatchSize = 5000

// Sink receives facts and anomalies. *store.FactStore satisfies it.
type Sink interface {
	BeginBatch(ctx context.Context, layoutID, source string) (string, error)
	InsertFacts(ctx context.Context, batchID string, facts []eav.Fact) (*store.PersistenceResult, error)
	RecordAnomalies(ctx context.Context, batchID string, anomalies []eav.Anomaly) error
	FinishBatch(ctx context.Context, batchID, status string, counts store.BatchCounts) error
}

// Options configure a Pipeline.
type Options struct {
	Decoder     *fwf.Decoder
	Transformer *eav.Transformer
	// Version rejects rows whose record version is outside the layout's.
	// Nil disables the check.
	Version *fwf.VersionCheck
	// Sink persists facts. Nil is a dry run.
	Sink     Sink
	LayoutID string

	BatchSize    int
	Workers      int
	MaxLineBytes int
	// KeepFacts collects every fact into Result.Facts.
	KeepFacts bool

	Emitter ProgressEmitter
	Logger  *zap.SugaredLogger
}

// Pipeline runs ingests. It holds no per-run state.
type Pipeline struct {
	opts Options
	log  *zap.SugaredLogger
}

// New validates opts and returns a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Decoder == nil || opts.Transformer == nil {
		return nil, errors.NewInvalidRequestError("ingest needs a decoder and a transformer")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Emitter == nil {
		opts.Emitter = NopEmitter{}
	}
	return &Pipeline{opts: opts, log: logger.OrNop(opts.Logger)}, nil
}

// Run ingests every line of r. source names the input in logs, progress
// and the ingest batch record. Read, decode and persistence failures abort
// the run; version mismatches and rejected facts are recorded as warnings.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, source string) (*Result, error) {
	start := time.Now()
	op := "ingest"
	if p.opts.Sink == nil {
		op = "dry-run"
	}
	res := newResult(op, source)
	res.DryRun = p.opts.Sink == nil
	log := logger.ChildLogger(p.log, logger.FieldFile, source)

	if p.opts.Sink != nil {
		id, err := p.opts.Sink.BeginBatch(ctx, p.opts.LayoutID, source)
		if err != nil {
			return nil, err
		}
		res.BatchID = id
		ctx = logger.WithBatchID(ctx, id)
		log = log.With(logger.FieldsFromContext(ctx)...)
	}

	p.opts.Emitter.EmitStage("decode", fmt.Sprintf("reading %s", source))
	err := p.run(ctx, r, res, log)
	res.Stats.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		res.AddError("ingest", "aborted", err.Error(), errors.GetAllHints(err)...)
		p.opts.Emitter.EmitError("ingest", err)
		p.finish(res, store.StatusFailed, log)
		log.Errorw("Ingest aborted", logger.FieldError, err, logger.FieldLine, res.Stats.LinesRead)
		return res, err
	}

	if err := p.finish(res, store.StatusComplete, log); err != nil {
		return res, err
	}
	p.opts.Emitter.EmitAnomalies(len(res.Anomalies), res.Anomalies)
	p.opts.Emitter.EmitComplete(res.Summary())
	log.Infow("Ingest complete",
		"rows", res.Stats.RowsDecoded,
		"facts", res.Stats.FactsEmitted,
		"anomalies", res.Stats.Anomalies,
		logger.FieldDurationMS, res.Stats.DurationMs)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, r io.Reader, res *Result, log *zap.SugaredLogger) error {
	reader := fwf.NewReader(r, p.opts.Decoder, p.opts.MaxLineBytes)
	det := eav.NewDuplicateDetector()
	var issues []eav.Anomaly

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "ingest cancelled")
		}
		lines, err := reader.ReadBatch(p.opts.BatchSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		res.Stats.LinesRead = reader.LineNumber()

		rows, err := fwf.DecodeAll(ctx, p.opts.Decoder, lines, p.opts.Workers)
		if err != nil {
			return err
		}
		res.Stats.RowsDecoded += len(rows)

		accepted := rows[:0]
		for _, row := range rows {
			if err := p.opts.Version.Check(row); err != nil {
				res.Stats.RowsRejected++
				res.AddWarning(Issue{Stage: "decode", Code: CodeVersionMismatch, Message: err.Error(), Line: row.Line})
				continue
			}
			accepted = append(accepted, row)
		}

		facts, rowIssues := p.opts.Transformer.Transform(accepted, det)
		issues = append(issues, rowIssues...)
		res.Stats.FactsEmitted += len(facts)
		if p.opts.KeepFacts {
			res.Facts = append(res.Facts, facts...)
		}

		if p.opts.Sink != nil {
			pr, err := p.opts.Sink.InsertFacts(ctx, res.BatchID, facts)
			if err != nil {
				return err
			}
			res.Stats.FactsWritten += pr.PersistedCount
			res.Stats.FactsFailed += pr.FailureCount
			for _, msg := range pr.Errors {
				res.AddWarning(Issue{Stage: "persist", Code: CodePersistFailure, Message: msg})
			}
		}

		p.opts.Emitter.EmitProgress(res.Stats.RowsDecoded, map[string]interface{}{"type": "records"})
		log.Debugw("Processed batch",
			logger.FieldBatchSize, len(lines),
			logger.FieldLine, res.Stats.LinesRead,
			"facts", len(facts))
	}
	res.Stats.LinesRead = reader.LineNumber()

	res.Anomalies = append(det.Anomalies(), issues...)
	res.Stats.Anomalies = len(res.Anomalies)
	if n := len(res.Anomalies); n > 0 {
		log.Warnw("Data-quality anomalies found", logger.FieldCount, n)
	}

	if p.opts.Sink != nil {
		if err := p.opts.Sink.RecordAnomalies(ctx, res.BatchID, res.Anomalies); err != nil {
			return err
		}
	}
	return nil
}

// finish closes the ingest batch. A failed run is closed on a fresh
// context so cancellation does not leave the batch marked running.
func (p *Pipeline) finish(res *Result, status string, log *zap.SugaredLogger) error {
	if p.opts.Sink == nil {
		return nil
	}
	counts := store.BatchCounts{
		LinesRead:    res.Stats.LinesRead,
		RowsDecoded:  res.Stats.RowsDecoded,
		FactsWritten: res.Stats.FactsWritten,
		Anomalies:    res.Stats.Anomalies,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.opts.Sink.FinishBatch(ctx, res.BatchID, status, counts); err != nil {
		log.Warnw("Failed to close ingest batch", logger.FieldError, err)
		return err
	}
	return nil
}
