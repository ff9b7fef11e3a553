package smoothing

import (
	"fmt"
	"strings"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// Mode is a smoothing preset offered by the dashboard selector.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeFast   Mode = "fast"
	ModeHour   Mode = "hour"
	ModeSlow   Mode = "slow"
	ModeCustom Mode = "custom"
)

// DefaultAlpha is ~30 samples of memory, about one hour at 2-minute sampling.
const DefaultAlpha = 0.033

var presetAlphas = map[Mode]float64{
	ModeNone: 0,
	ModeFast: 0.1,
	ModeHour: DefaultAlpha,
	ModeSlow: 0.01,
}

// Modes lists all selectable modes in selector order.
func Modes() []Mode {
	return []Mode{ModeNone, ModeFast, ModeHour, ModeSlow, ModeCustom}
}

// ParseMode converts a selector value to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == ModeCustom {
		return m, nil
	}
	if _, ok := presetAlphas[m]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownMode, s)
}

// IsPreset reports whether the mode carries a fixed alpha.
func (m Mode) IsPreset() bool {
	_, ok := presetAlphas[m]
	return ok
}

// Alpha returns the preset alpha. Custom mode has no preset and returns DefaultAlpha.
func (m Mode) Alpha() float64 {
	if a, ok := presetAlphas[m]; ok {
		return a
	}
	return DefaultAlpha
}

// Resolve returns the effective alpha for the mode, using custom for ModeCustom.
func (m Mode) Resolve(custom float64) (float64, error) {
	if m == ModeCustom {
		if err := ValidateAlpha(custom); err != nil {
			return 0, err
		}
		return custom, nil
	}
	if !m.IsPreset() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownMode, string(m))
	}
	return m.Alpha(), nil
}
