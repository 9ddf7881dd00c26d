// Package audit keeps a bounded history of condition mutations and exports
// it as an Excel report.
package audit

import (
	"io"
	"sync"
	"time"
)

// Entry records one successful mutation against a condition.
type Entry struct {
	Time        time.Time
	ConditionID string
	Action      string
	Detail      string
}

// Recorder receives mutation entries. The engine calls it after a
// mutation has been persisted and applied.
type Recorder interface {
	Record(entry Entry)
}

// Trail is an in-memory, bounded mutation history.
type Trail struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
	retention  time.Duration
}

// NewTrail creates a trail keeping at most maxEntries entries (default
// 1000) no older than retention (default 31 days).
func NewTrail(maxEntries int, retention time.Duration) *Trail {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if retention <= 0 {
		retention = 31 * 24 * time.Hour
	}
	return &Trail{maxEntries: maxEntries, retention: retention}
}

// Record appends an entry, stamping its time if unset, and prunes.
func (t *Trail) Record(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.retention)
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Time.After(cutoff) {
			kept = append(kept, e)
		}
	}
	t.entries = append(kept, entry)

	if excess := len(t.entries) - t.maxEntries; excess > 0 {
		t.entries = append(t.entries[:0], t.entries[excess:]...)
	}
}

// Entries returns a copy of the recorded history, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of recorded entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Export writes the trail as an xlsx workbook with one "mutations" sheet.
func (t *Trail) Export(w io.Writer) error {
	xw := newExcelWriter()
	defer xw.Close()

	if err := xw.AddSheet("mutations"); err != nil {
		return err
	}
	if err := xw.WriteHeader([]string{"time", "condition_id", "action", "detail"}); err != nil {
		return err
	}
	for _, e := range t.Entries() {
		row := []interface{}{e.Time.Format(time.RFC3339), e.ConditionID, e.Action, e.Detail}
		if err := xw.WriteRow(row); err != nil {
			return err
		}
	}
	return xw.Save(w)
}

// ExportToFile writes the report to disk.
func (t *Trail) ExportToFile(path string) error {
	xw := newExcelWriter()
	defer xw.Close()

	if err := xw.AddSheet("mutations"); err != nil {
		return err
	}
	if err := xw.WriteHeader([]string{"time", "condition_id", "action", "detail"}); err != nil {
		return err
	}
	for _, e := range t.Entries() {
		row := []interface{}{e.Time.Format(time.RFC3339), e.ConditionID, e.Action, e.Detail}
		if err := xw.WriteRow(row); err != nil {
			return err
		}
	}
	return xw.SaveToFile(path)
}
