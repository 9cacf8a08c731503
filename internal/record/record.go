// Package record holds the per-storage dataset: rows of a CSV ingest,
// bucketed by their canonical date key. It plays the role the teacher's
// storage.MemoryStore played for single key/value pairs, generalized to
// spec.md §3's data model where each date maps to a list of field-map rows.
package record

import "sync"

// Record is a single ingested row: column name to raw string value, the
// same loosely-typed shape the Python ingest path worked with.
type Record map[string]string

// Dataset is the mutex-guarded collection one storage or replica node holds:
// canonical date key ("dd-mm-yyyy") to the records filed under it.
type Dataset struct {
	mu      sync.RWMutex
	buckets map[string][]Record
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{buckets: make(map[string][]Record)}
}

// Append adds rec under date, preserving whatever was already filed there.
func (d *Dataset) Append(date string, rec Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buckets[date] = append(d.buckets[date], rec)
}

// Get returns the records filed under date and whether the date is present
// at all (distinguishing "known date, no rows" from "date never loaded" is
// not needed here, so ok mirrors simple map presence).
func (d *Dataset) Get(date string) ([]Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recs, ok := d.buckets[date]
	if !ok {
		return nil, false
	}
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, true
}

// MergeChunk merges a date→records chunk received over LOAD_2/COPY_2 into
// the dataset. Per spec.md's last-writer-wins rule, the incoming bucket
// replaces whatever was filed locally under that date, matching
// replicaNode.py's self.data.update(received_data) (a whole-key
// replacement, not an accumulation). This also makes redelivery of the
// same chunk a no-op rather than a duplicate.
func (d *Dataset) MergeChunk(chunk map[string][]Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for date, recs := range chunk {
		d.buckets[date] = recs
	}
}

// Snapshot returns a deep copy of the entire dataset, used by RELOCATE to
// partition outgoing data into chunks without holding the dataset lock
// across the whole chunking loop.
func (d *Dataset) Snapshot() map[string][]Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string][]Record, len(d.buckets))
	for date, recs := range d.buckets {
		cp := make([]Record, len(recs))
		copy(cp, recs)
		out[date] = cp
	}
	return out
}

// Dates returns every date key currently populated, in no particular order.
func (d *Dataset) Dates() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.buckets))
	for date := range d.buckets {
		out = append(out, date)
	}
	return out
}

// Len reports the total number of records across all dates.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, recs := range d.buckets {
		n += len(recs)
	}
	return n
}
