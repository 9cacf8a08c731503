package showcase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/btree"
)

const canonicalLayout = "02-01-2006"

// entry is one date's running-mean state, ordered on the btree by its
// parsed calendar value rather than the string form so range queries
// compare real dates, per spec.md §4.5.
type entry struct {
	date  string
	when  time.Time
	mean  float64
	count float64
}

func lessEntry(a, b entry) bool {
	return a.when.Before(b.when)
}

// Index is the showcase's thread-safe ordered date→(mean, count) table,
// grounded on original_source/showcase.py's SortedDict usage but backed by
// google/btree for O(log n + k) range iteration instead of a Python
// SortedDict.
type Index struct {
	mu       sync.Mutex
	tree     *btree.BTreeG[entry]
	accuracy int
}

// NewIndex returns an empty index. accuracy is the number of decimal places
// range-query results are rounded to (3, per spec.md §4.5).
func NewIndex(accuracy int) *Index {
	return &Index{
		tree:     btree.NewG(32, lessEntry),
		accuracy: accuracy,
	}
}

// Update folds sample into the running mean stored for date, creating a new
// entry if date has not been seen before.
func (ix *Index) Update(date string, sample Sample) error {
	when, err := time.Parse(canonicalLayout, date)
	if err != nil {
		return fmt.Errorf("showcase: parse date %q: %w", date, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.tree.Get(entry{when: when}); ok {
		newCount := existing.count + sample.Weight
		newMean := (existing.mean*existing.count + sample.Temperature*sample.Weight) / newCount
		existing.mean = newMean
		existing.count = newCount
		ix.tree.ReplaceOrInsert(existing)
		return nil
	}

	ix.tree.ReplaceOrInsert(entry{
		date:  date,
		when:  when,
		mean:  sample.Temperature,
		count: sample.Weight,
	})
	return nil
}

// RangeStatus mirrors the three status codes spec.md §4.5 names for
// temp_range.
type RangeStatus string

const (
	RangeSuccess RangeStatus = "success"
	RangeEmpty   RangeStatus = "204"
	RangeNoMatch RangeStatus = "404"
)

// Range returns the rounded per-date means for every date in [date1, date2]
// inclusive, plus the status code spec.md §4.5's temp_range defines:
// RangeEmpty if the index holds no dates at all, RangeNoMatch if the index
// is non-empty but nothing falls in range, RangeSuccess otherwise.
func (ix *Index) Range(date1, date2 string) (map[string]float64, RangeStatus, error) {
	start, err := time.Parse(canonicalLayout, date1)
	if err != nil {
		return nil, "", fmt.Errorf("showcase: parse date1 %q: %w", date1, err)
	}
	end, err := time.Parse(canonicalLayout, date2)
	if err != nil {
		return nil, "", fmt.Errorf("showcase: parse date2 %q: %w", date2, err)
	}
	// AscendRange's upper bound is exclusive; nudge it past end so the
	// end date itself is included.
	upper := end.Add(24 * time.Hour)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	empty := ix.tree.Len() == 0
	result := make(map[string]float64)
	ix.tree.AscendRange(entry{when: start}, entry{when: upper}, func(e entry) bool {
		result[e.date] = roundTo(e.mean, ix.accuracy)
		return true
	})

	switch {
	case empty:
		return result, RangeEmpty, nil
	case len(result) == 0:
		return result, RangeNoMatch, nil
	default:
		return result, RangeSuccess, nil
	}
}

// RangeAvg computes the unweighted mean of the per-date means returned by
// Range, rounded to the same accuracy, per spec.md §4.5's temp_range_avg.
func (ix *Index) RangeAvg(date1, date2 string) (float64, RangeStatus, error) {
	data, status, err := ix.Range(date1, date2)
	if err != nil {
		return 0, "", err
	}
	if status != RangeSuccess {
		return 0, status, nil
	}

	var sum float64
	for _, v := range data {
		sum += v
	}
	return roundTo(sum/float64(len(data)), ix.accuracy), RangeSuccess, nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
