package eav

import (
	"fmt"
	"sort"
	"sync"
)

// AnomalyKind classifies a data-quality finding. Anomalies are reported
// alongside results; they never stop processing.
type AnomalyKind string

const (
	// AnomalyDuplicateRecordKey: rows share a natural key but have
	// different record IDs.
	AnomalyDuplicateRecordKey AnomalyKind = "duplicate_record_key"
	// AnomalyDuplicateRecordID: rows have identical record IDs.
	AnomalyDuplicateRecordID AnomalyKind = "duplicate_record_id"
	// AnomalyUnparsableDate: a non-blank date field did not parse.
	AnomalyUnparsableDate AnomalyKind = "unparsable_date"
)

// Anomaly is one data-quality finding.
type Anomaly struct {
	Kind      AnomalyKind `json:"kind"`
	Key       RecordKey   `json:"key"`
	RecordIDs []string    `json:"record_ids,omitempty"`
	Lines     []int       `json:"lines,omitempty"`
	Field     string      `json:"field,omitempty"`
	Value     string      `json:"value,omitempty"`
}

func (a Anomaly) String() string {
	switch a.Kind {
	case AnomalyUnparsableDate:
		return fmt.Sprintf("%s: %s=%q at line %v", a.Kind, a.Field, a.Value, a.Lines)
	default:
		return fmt.Sprintf("%s: patient=%q tumor=%q records=%v lines=%v",
			a.Kind, a.Key.PatientID, a.Key.TumorID, a.RecordIDs, a.Lines)
	}
}

// DuplicateDetector aggregates record keys across a whole data set. Feed
// it every row, from any number of partitions, then call Anomalies once.
// It is safe for concurrent use.
type DuplicateDetector struct {
	mu    sync.Mutex
	byKey map[RecordKey]map[string][]int
}

// NewDuplicateDetector returns an empty detector.
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{byKey: make(map[RecordKey]map[string][]int)}
}

// Observe records the key and record ID of one row.
func (d *DuplicateDetector) Observe(info RowInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(info.Key, info.RecordID, info.Line)
}

func (d *DuplicateDetector) add(key RecordKey, id string, lines ...int) {
	ids, ok := d.byKey[key]
	if !ok {
		ids = make(map[string][]int)
		d.byKey[key] = ids
	}
	ids[id] = append(ids[id], lines...)
}

// Merge folds other into d, for detectors filled per partition.
func (d *DuplicateDetector) Merge(other *DuplicateDetector) {
	if other == nil || other == d {
		return
	}
	type entry struct {
		key   RecordKey
		id    string
		lines []int
	}
	other.mu.Lock()
	var entries []entry
	for key, ids := range other.byKey {
		for id, lines := range ids {
			entries = append(entries, entry{key, id, append([]int(nil), lines...)})
		}
	}
	other.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		d.add(e.key, e.id, e.lines...)
	}
}

// Rows returns how many rows have been observed.
func (d *DuplicateDetector) Rows() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ids := range d.byKey {
		for _, lines := range ids {
			n += len(lines)
		}
	}
	return n
}

// Anomalies lists duplicate keys and duplicate record IDs, ordered by key
// then record ID. Line lists are sorted.
func (d *DuplicateDetector) Anomalies() []Anomaly {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]RecordKey, 0, len(d.byKey))
	for k := range d.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PatientID != keys[j].PatientID {
			return keys[i].PatientID < keys[j].PatientID
		}
		return keys[i].TumorID < keys[j].TumorID
	})

	var out []Anomaly
	for _, key := range keys {
		ids := d.byKey[key]
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)

		if len(sorted) > 1 {
			var lines []int
			for _, id := range sorted {
				lines = append(lines, ids[id]...)
			}
			sort.Ints(lines)
			out = append(out, Anomaly{
				Kind:      AnomalyDuplicateRecordKey,
				Key:       key,
				RecordIDs: sorted,
				Lines:     lines,
			})
		}
		for _, id := range sorted {
			if len(ids[id]) < 2 {
				continue
			}
			lines := append([]int(nil), ids[id]...)
			sort.Ints(lines)
			out = append(out, Anomaly{
				Kind:      AnomalyDuplicateRecordID,
				Key:       key,
				RecordIDs: []string{id},
				Lines:     lines,
			})
		}
	}
	return out
}
