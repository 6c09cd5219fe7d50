// Package analysis computes correlation and event-study statistics over a built dataset.
package analysis

import (
	"math"
	"sort"

	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/models"
)

// CorrelationEngine correlates liquidation predictors with the next-bucket return.
type CorrelationEngine struct {
	predictors []string
}

// NewCorrelationEngine builds an engine for cfg.Predictors.
func NewCorrelationEngine(cfg config.AnalysisConfig) *CorrelationEngine {
	predictors := cfg.Predictors
	if len(predictors) == 0 {
		predictors = models.DefaultPredictors()
	}
	return &CorrelationEngine{predictors: predictors}
}

// Run returns one row per predictor, sorted by predictor name. Each row uses the rows
// where both the predictor and ret_next are defined; with no such rows, or a constant
// column, the coefficients are undefined.
func (e *CorrelationEngine) Run(rows []models.DatasetRow) []models.CorrelationRow {
	out := make([]models.CorrelationRow, 0, len(e.predictors))
	for _, name := range e.predictors {
		out = append(out, correlate(rows, name))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Predictor < out[j].Predictor
	})
	return out
}

func correlate(rows []models.DatasetRow, predictor string) models.CorrelationRow {
	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for i := range rows {
		x, ok := rows[i].Predictor(predictor)
		if !ok || math.IsNaN(rows[i].RetNext) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, rows[i].RetNext)
	}

	row := models.CorrelationRow{Predictor: predictor, N: len(xs)}
	if p, ok := pearson(xs, ys); ok {
		row.Pearson = models.Defined(p)
	}
	if s, ok := spearman(xs, ys); ok {
		row.Spearman = models.Defined(s)
	}
	return row
}
