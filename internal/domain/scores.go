package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// ParseScores decodes a stored scores object. The reserved key, non-numeric
// entries and non-finite numbers are dropped.
func ParseScores(raw []byte) (map[string]float64, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}

	values := make(map[string]float64, len(fields))
	for key, v := range fields {
		if key == ReservedKey {
			continue
		}
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values[key] = f
	}
	return values, nil
}

// Validate checks a point before it is written to a store.
func (p SeriesPoint) Validate() error {
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidPoint)
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("%w: no scores", ErrInvalidPoint)
	}
	for key, v := range p.Values {
		if key == "" || key == ReservedKey {
			return fmt.Errorf("%w: reserved or empty key %q", ErrInvalidPoint, key)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite score for %s", ErrInvalidPoint, key)
		}
	}
	return nil
}
