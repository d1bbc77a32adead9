// Package ix ingests fixed-width NAACCR extracts: it reads lines in
// batches, decodes them in parallel, checks record versions, reshapes rows
// into EAV facts, aggregates duplicate record keys over the whole file and
// optionally persists facts and anomalies to a FactStore.
package ix

import (
	"github.com/rwaitman/naaccr-tumor-data/eav"
)

// ResultVersion is the version of the Result JSON shape.
const ResultVersion = "v1"

// Issue codes.
const (
	CodeVersionMismatch = "version_mismatch"
	CodePersistFailure  = "persist_failure"
)

// maxIssues caps the warnings kept in a Result; Stats still counts all.
const maxIssues = 100

// Result is the structured outcome of one ingest run.
type Result struct {
	Op        string        `json:"op"`
	Source    string        `json:"source"`
	BatchID   string        `json:"batch_id,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Stats     Stats         `json:"stats"`
	Anomalies []eav.Anomaly `json:"anomalies,omitempty"`
	Facts     []eav.Fact    `json:"facts,omitempty"`
	Warnings  []Issue       `json:"warnings,omitempty"`
	Errors    []Issue       `json:"errors,omitempty"`
	Version   string        `json:"version"`
}

// Stats captures summary metrics for an ingest run.
type Stats struct {
	LinesRead    int   `json:"lines_read"`
	RowsDecoded  int   `json:"rows_decoded"`
	RowsRejected int   `json:"rows_rejected"`
	FactsEmitted int   `json:"facts_emitted"`
	FactsWritten int   `json:"facts_written"`
	FactsFailed  int   `json:"facts_failed"`
	Anomalies    int   `json:"anomalies"`
	DurationMs   int64 `json:"duration_ms"`
}

// Issue captures a warning or error with optional hints.
type Issue struct {
	Stage   string   `json:"stage"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Line    int      `json:"line,omitempty"`
	Hints   []string `json:"hints,omitempty"`
}

func newResult(op, source string) *Result {
	return &Result{Op: op, Source: source, Version: ResultVersion}
}

// AddWarning appends a warning unless the cap is reached. It reports
// whether the warning was kept.
func (r *Result) AddWarning(issue Issue) bool {
	if len(r.Warnings) >= maxIssues {
		return false
	}
	r.Warnings = append(r.Warnings, issue)
	return true
}

// AddError appends an error issue.
func (r *Result) AddError(stage, code, message string, hints ...string) {
	r.Errors = append(r.Errors, Issue{Stage: stage, Code: code, Message: message, Hints: hints})
}

// HasErrors reports whether the run recorded any errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary is the map handed to ProgressEmitter.EmitComplete.
func (r *Result) Summary() map[string]interface{} {
	s := map[string]interface{}{
		"source":        r.Source,
		"lines_read":    r.Stats.LinesRead,
		"rows_decoded":  r.Stats.RowsDecoded,
		"rows_rejected": r.Stats.RowsRejected,
		"facts":         r.Stats.FactsEmitted,
		"anomalies":     r.Stats.Anomalies,
		"duration_ms":   r.Stats.DurationMs,
	}
	if !r.DryRun {
		s["batch_id"] = r.BatchID
		s["facts_written"] = r.Stats.FactsWritten
	}
	return s
}
