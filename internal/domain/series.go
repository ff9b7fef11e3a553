package domain

import (
	"sort"
	"time"
)

// ReservedKey is the row key the backing store uses for the point's time.
// It never appears as a series key.
const ReservedKey = "timestamp"

// SeriesPoint is one sample of every series observed at Timestamp.
// Values maps series key (ticker) to score, nominally in [-1, 1].
type SeriesPoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Dataset is ordered non-decreasing by timestamp. Ties are permitted.
type Dataset []SeriesPoint

// SeriesKeys returns every series key present anywhere in the dataset, sorted.
func (d Dataset) SeriesKeys() []string {
	seen := make(map[string]struct{})
	for _, p := range d {
		for k := range p.Values {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Latest returns the last point of the dataset.
func (d Dataset) Latest() (SeriesPoint, bool) {
	if len(d) == 0 {
		return SeriesPoint{}, false
	}
	return d[len(d)-1], true
}

// Len returns the number of points.
func (d Dataset) Len() int { return len(d) }
