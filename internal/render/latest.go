package render

import (
	"sort"
	"strconv"
	"time"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

const asOfLayout = "01/02/2006, 03:04:05 PM MST"

// ScoreRow is one ticker in the latest-scores table.
type ScoreRow struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Color RGB     `json:"color"`
}

// LatestView is the latest-scores table.
type LatestView struct {
	NoData bool       `json:"noData"`
	AsOf   time.Time  `json:"asOf"`
	Title  string     `json:"title"`
	Rows   []ScoreRow `json:"rows"`
}

// BuildLatest renders the dataset's last row sorted by descending score.
func BuildLatest(dataset domain.Dataset) LatestView {
	latest, ok := dataset.Latest()
	if !ok {
		return LatestView{NoData: true, Title: "Latest Scores"}
	}

	rows := make([]ScoreRow, 0, len(latest.Values))
	for key, score := range latest.Values {
		rows = append(rows, ScoreRow{
			Key:   key,
			Score: score,
			Label: strconv.FormatFloat(score, 'f', 3, 64),
			Color: ScoreToColor(score),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Key < rows[j].Key
	})

	asOf := latest.Timestamp.UTC()
	return LatestView{
		AsOf:  asOf,
		Title: "Latest Scores (as of " + asOf.Format(asOfLayout) + ")",
		Rows:  rows,
	}
}
