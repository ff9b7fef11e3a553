package render

import (
	"fmt"
	"math"
)

// RGB is a background color for a score cell. It travels as a CSS rgb() string.
type RGB struct {
	R, G, B int
}

const scoreBlue = 150

// ScoreToColor maps a score to a red/green scale: negative scores fade green out,
// positive scores fade red out. Scores are clamped to [-1, 1].
func ScoreToColor(score float64) RGB {
	clamped := math.Max(-1, math.Min(1, score))
	return RGB{
		R: int(math.Floor(255 * (1 - math.Max(clamped, 0)))),
		G: int(math.Floor(255 * (1 + math.Min(clamped, 0)))),
		B: scoreBlue,
	}
}

// CSS renders the color as a CSS rgb() value.
func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.CSS()), nil
}

func (c *RGB) UnmarshalText(text []byte) error {
	if _, err := fmt.Sscanf(string(text), "rgb(%d, %d, %d)", &c.R, &c.G, &c.B); err != nil {
		return fmt.Errorf("parse color %q: %w", text, err)
	}
	return nil
}
