// Package showcase maintains the per-date running-mean temperature index
// and serves range queries over it. Temperature extraction and update rules
// are ported from original_source/showcase.py's process_new_data; the
// ordered index itself lives in index.go.
package showcase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dreamware/triod/internal/record"
)

// Sample is one extracted (temperature, weight) observation ready to be
// folded into the running mean for a date.
type Sample struct {
	Temperature float64
	Weight      float64
}

// ErrNoMatch is returned when no extraction strategy's marker column is
// present in the record, or the matched strategy yields no usable value.
var ErrNoMatch = fmt.Errorf("showcase: no temperature marker matched")

// strategy is one (predicate, extractor) pair in spec.md §4.5's priority
// table. Strategies are tried in slice order and the first whose predicate
// matches wins — spec.md §9's "ordered sequence of strategies" re-
// architecture guidance, replacing the Python's if/elif chain.
type strategy struct {
	name    string
	matches func(r record.Record) bool
	extract func(r record.Record) (Sample, error)
}

var strategies = []strategy{
	{
		name: "temp_max/temp_min",
		matches: func(r record.Record) bool {
			_, ok := r["temp_max"]
			return ok
		},
		extract: func(r record.Record) (Sample, error) {
			tMax, err := parseFloat(r["temp_max"])
			if err != nil {
				return Sample{}, err
			}
			tMin, err := parseFloat(r["temp_min"])
			if err != nil {
				return Sample{}, err
			}
			return Sample{Temperature: (tMin + tMax) / 2, Weight: 1}, nil
		},
	},
	{
		name: "_tempm",
		matches: func(r record.Record) bool {
			_, ok := r[" _tempm"]
			return ok
		},
		extract: func(r record.Record) (Sample, error) {
			t, err := parseFloat(r[" _tempm"])
			if err != nil {
				return Sample{}, err
			}
			return Sample{Temperature: t, Weight: 1}, nil
		},
	},
	{
		name: "Data.Temperature.Avg Temp",
		matches: func(r record.Record) bool {
			_, ok := r["Data.Temperature.Avg Temp"]
			return ok
		},
		extract: func(r record.Record) (Sample, error) {
			t, err := parseFloat(r["Data.Temperature.Avg Temp"])
			if err != nil {
				return Sample{}, err
			}
			return Sample{Temperature: t, Weight: 1}, nil
		},
	},
	{
		name: "*_temp_mean average",
		matches: func(r record.Record) bool {
			for col := range r {
				if strings.HasSuffix(col, "_temp_mean") {
					return true
				}
			}
			return false
		},
		extract: func(r record.Record) (Sample, error) {
			var sum float64
			var count float64
			for col, val := range r {
				if !strings.HasSuffix(col, "_temp_mean") {
					continue
				}
				if strings.TrimSpace(val) == "" {
					continue
				}
				f, err := parseFloat(val)
				if err != nil {
					continue
				}
				sum += f
				count++
			}
			if count == 0 {
				return Sample{}, ErrNoMatch
			}
			return Sample{Temperature: sum / count, Weight: count}, nil
		},
	},
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Extract applies the priority-ordered strategies to r and returns the
// first matching sample. If no strategy's marker column is present, or the
// matched strategy fails to produce a finite value, it returns ErrNoMatch —
// callers drop the record silently, per spec.md §4.5.
func Extract(r record.Record) (Sample, error) {
	for _, s := range strategies {
		if !s.matches(r) {
			continue
		}
		sample, err := s.extract(r)
		if err != nil {
			return Sample{}, ErrNoMatch
		}
		if math.IsNaN(sample.Temperature) || math.IsInf(sample.Temperature, 0) {
			return Sample{}, ErrNoMatch
		}
		return sample, nil
	}
	return Sample{}, ErrNoMatch
}
