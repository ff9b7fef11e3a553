package render

import (
	"time"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

const (
	WideColumns      = 3
	NarrowColumns    = 1
	subChartHeight   = 220
	NarrowBreakpoint = 768
)

// SubChart is one series' line: x = timestamps where the series is present, y = score.
type SubChart struct {
	Key    string      `json:"key"`
	Title  string      `json:"title"`
	X      []time.Time `json:"x"`
	Y      []float64   `json:"y"`
	Row    int         `json:"row"`
	Column int         `json:"column"`
}

// ChartView is a grid of sub-charts, one per series key.
type ChartView struct {
	NoData  bool       `json:"noData"`
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Height  int        `json:"height"`
	Charts  []SubChart `json:"charts"`
}

// ColumnsFor returns the grid column count for a viewport.
func ColumnsFor(narrow bool) int {
	if narrow {
		return NarrowColumns
	}
	return WideColumns
}

// IsNarrow reports whether a viewport width falls in the single-column layout.
func IsNarrow(viewportWidth int) bool {
	return viewportWidth > 0 && viewportWidth <= NarrowBreakpoint
}

// BuildChart lays out one sub-chart per series key present anywhere in dataset.
func BuildChart(dataset domain.Dataset, columns int) ChartView {
	keys := dataset.SeriesKeys()
	if len(keys) == 0 {
		return ChartView{NoData: true}
	}
	if columns < 1 {
		columns = WideColumns
	}

	cols := min(columns, len(keys))
	rows := (len(keys) + cols - 1) / cols

	index := make(map[string]int, len(keys))
	charts := make([]SubChart, len(keys))
	for i, key := range keys {
		index[key] = i
		charts[i] = SubChart{
			Key:    key,
			Title:  key + " Sentiment",
			Row:    i / cols,
			Column: i % cols,
		}
	}

	for _, p := range dataset {
		for key, v := range p.Values {
			c := &charts[index[key]]
			c.X = append(c.X, p.Timestamp)
			c.Y = append(c.Y, v)
		}
	}

	return ChartView{
		Rows:    rows,
		Columns: cols,
		Height:  subChartHeight * rows,
		Charts:  charts,
	}
}
