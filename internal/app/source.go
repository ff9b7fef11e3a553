package app

import (
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// ComposedSource pairs a store's reads with a separately wired change channel,
// e.g. Postgres reads with Redis pub/sub, or SQLite reads with polling only.
type ComposedSource struct {
	domain.ScoreSource
	domain.ChangeNotifier
}

var _ domain.DataSource = ComposedSource{}

func NewComposedSource(scores domain.ScoreSource, changes domain.ChangeNotifier) ComposedSource {
	return ComposedSource{ScoreSource: scores, ChangeNotifier: changes}
}
