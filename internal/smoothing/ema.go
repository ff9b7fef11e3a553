package smoothing

import (
	"fmt"
	"math"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// Smooth applies an independent EMA to every series in dataset.
//
// The first observed value of a series seeds its EMA unchanged; each later observation
// applies ema = alpha*raw + (1-alpha)*prev. A series absent at a timestamp stays absent in
// the output. alpha must be within [0, 1]; alpha == 0 and an empty dataset return the input
// as-is.
func Smooth(dataset domain.Dataset, alpha float64) domain.Dataset {
	if len(dataset) == 0 || alpha == 0 {
		return dataset
	}

	// One pass in timestamp order visits each series' subsequence in order, so the running
	// state per key is the previous EMA of that series. No reassembly lookup is needed.
	prev := make(map[string]float64)
	out := make(domain.Dataset, len(dataset))

	for i, point := range dataset {
		values := make(map[string]float64, len(point.Values))
		for key, raw := range point.Values {
			last, seeded := prev[key]
			ema := raw
			if seeded {
				ema = alpha*raw + (1-alpha)*last
			}
			prev[key] = ema
			values[key] = ema
		}
		out[i] = domain.SeriesPoint{Timestamp: point.Timestamp, Values: values}
	}

	return out
}

// ValidateAlpha rejects values outside [0, 1] and NaN.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidAlpha, alpha)
	}
	return nil
}

// AlphaForTimeConstant returns the alpha whose EMA has a time constant of roughly the
// given number of samples (alpha ≈ 1/samples).
func AlphaForTimeConstant(samples float64) float64 {
	if samples <= 1 {
		return 1
	}
	return 1 / samples
}
