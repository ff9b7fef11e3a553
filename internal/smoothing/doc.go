// Package smoothing implements the per-series exponential moving average applied to
// sentiment datasets, plus the smoothing presets offered by the dashboard control.
//
// Smooth is a pure function: it never mutates its input, and callers re-smooth from raw
// data on every alpha change so decay never compounds.
package smoothing
