package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/models"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// datasetRows builds consecutive hourly rows from closes and long-side USD totals.
func datasetRows(closes, longs []float64) []models.DatasetRow {
	rows := make([]models.DatasetRow, len(closes))
	for i := range closes {
		rows[i] = models.DatasetRow{
			AggregatedBucket: models.AggregatedBucket{
				Timestamp:  base.Add(time.Duration(i) * time.Hour),
				LongLiqUSD: longs[i],
				LongCount:  1,
			},
			Close:       closes[i],
			NetLiqUSD:   -longs[i],
			LiqTotalUSD: longs[i],
		}
		if i+1 < len(closes) {
			rows[i].RetNext = (closes[i+1] - closes[i]) / closes[i]
		} else {
			rows[i].RetNext = math.NaN()
		}
	}
	return rows
}

func analysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		Interval:        models.Interval1h,
		Horizons:        []int{1, 2},
		SpikePercentile: 0.5,
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 3.85, percentile(sorted, 0.95), 1e-12)
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 4.0, percentile(sorted, 1))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.3))
}

func TestRanksTies(t *testing.T) {
	assert.Equal(t, []float64{1.5, 1.5, 3, 4}, ranks([]float64{1, 1, 2, 3}))
	assert.Equal(t, []float64{3, 1, 2}, ranks([]float64{9, -1, 0}))
}

func TestPearson(t *testing.T) {
	r, ok := pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, ok = pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, ok = pearson([]float64{1}, []float64{1})
	assert.False(t, ok)
	_, ok = pearson([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestSpearmanWithTies(t *testing.T) {
	s, ok := spearman([]float64{1, 1, 2, 3}, []float64{10, 20, 30, 40})
	require.True(t, ok)
	assert.InDelta(t, 3/math.Sqrt(10), s, 1e-12)
}

func TestCorrelation_ThreeRowScenario(t *testing.T) {
	rows := []models.DatasetRow{
		{AggregatedBucket: models.AggregatedBucket{Timestamp: base, LongLiqUSD: 10, LongCount: 1}, Close: 100, LiqTotalUSD: 10, RetNext: 0.1},
		{AggregatedBucket: models.AggregatedBucket{Timestamp: base.Add(time.Hour), LongLiqUSD: 20, LongCount: 1}, Close: 110, LiqTotalUSD: 20, RetNext: 0.3},
		{AggregatedBucket: models.AggregatedBucket{Timestamp: base.Add(2 * time.Hour), LongLiqUSD: 30, LongCount: 1}, Close: 99, LiqTotalUSD: 30, RetNext: 0.2},
	}
	engine := NewCorrelationEngine(config.AnalysisConfig{
		Predictors: []string{models.PredictorLongLiqUSD, models.PredictorLongCount},
	})
	got := engine.Run(rows)
	require.Len(t, got, 2)

	assert.Equal(t, models.PredictorLongCount, got[0].Predictor)
	assert.Equal(t, 3, got[0].N)
	assert.False(t, got[0].Pearson.Valid, "constant column")
	assert.False(t, got[0].Spearman.Valid, "constant column")

	assert.Equal(t, models.PredictorLongLiqUSD, got[1].Predictor)
	assert.Equal(t, 3, got[1].N)
	require.True(t, got[1].Pearson.Valid)
	assert.InDelta(t, 0.5, got[1].Pearson.Value, 1e-12)
	require.True(t, got[1].Spearman.Valid)
	assert.InDelta(t, 0.5, got[1].Spearman.Value, 1e-12)
}

func TestCorrelation_SkipsUndefinedTarget(t *testing.T) {
	rows := datasetRows([]float64{100, 110, 121, 110}, []float64{1, 2, 3, 4})
	got := NewCorrelationEngine(analysisConfig()).Run(rows)
	for _, row := range got {
		assert.Equal(t, 3, row.N, row.Predictor)
	}
}

func TestCorrelation_NoRows(t *testing.T) {
	got := NewCorrelationEngine(analysisConfig()).Run(nil)
	require.Len(t, got, len(models.DefaultPredictors()))

	names := make([]string, 0, len(got))
	for _, row := range got {
		names = append(names, row.Predictor)
		assert.Zero(t, row.N)
		assert.False(t, row.Pearson.Valid)
		assert.False(t, row.Spearman.Valid)
	}
	assert.Equal(t, []string{
		"liq_total_usd", "long_count", "long_liq_usd",
		"net_liq_usd", "short_count", "short_liq_usd",
	}, names)
}

func TestSpikeThreshold(t *testing.T) {
	assert.Equal(t, 15.0, SpikeThreshold([]float64{0, math.NaN(), 10, 20}, 0.5))
	assert.True(t, math.IsInf(SpikeThreshold([]float64{0, 0, 0}, 0.95), 1))
	assert.True(t, math.IsInf(SpikeThreshold(nil, 0.95), 1))
}

func TestForwardReturn(t *testing.T) {
	rows := datasetRows([]float64{100, 110, 0, 121}, []float64{0, 0, 0, 0})

	r, ok := ForwardReturn(rows, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.1, r, 1e-12)

	_, ok = ForwardReturn(rows, 2, 1)
	assert.False(t, ok, "zero close")
	_, ok = ForwardReturn(rows, 3, 1)
	assert.False(t, ok, "past the end")
}

func TestStudySpikes(t *testing.T) {
	rows := datasetRows([]float64{100, 110, 121, 110, 100}, []float64{0, 50, 0, 100, 0})
	long := []float64{0, 50, 0, 100, 0}

	got := StudySpikes(rows, models.LabelLongSpike, long, 50, []int{1, 2})
	require.Len(t, got, 2)

	h1 := got[0]
	assert.Equal(t, 1, h1.Horizon)
	assert.Equal(t, 2, h1.Events)
	want := (0.1 + (100.0-110.0)/110.0) / 2
	assert.InDelta(t, want, h1.Mean.Value, 1e-12)
	assert.InDelta(t, want, h1.Median.Value, 1e-12)
	assert.Equal(t, 0.5, h1.HitRatePos.Value)

	// row 3 has no bar two steps ahead
	h2 := got[1]
	assert.Equal(t, 1, h2.Events)
	assert.InDelta(t, (110.0-110.0)/110.0, h2.Mean.Value, 1e-12)
	assert.Equal(t, 0.0, h2.HitRatePos.Value)
}

func TestEventStudy_Run(t *testing.T) {
	rows := datasetRows([]float64{100, 110, 121, 110, 100}, []float64{0, 50, 0, 100, 0})
	engine := NewEventStudyEngine(analysisConfig())

	thr := engine.Thresholds(rows)
	assert.Equal(t, 75.0, thr.Long)
	assert.True(t, math.IsInf(thr.Short, 1))

	got := engine.Run(rows)
	require.Len(t, got, 4)

	assert.Equal(t, models.LabelLongSpike, got[0].Label)
	assert.Equal(t, 1, got[0].Horizon)
	assert.Equal(t, 1, got[0].Events)
	assert.InDelta(t, -10.0/110.0, got[0].Mean.Value, 1e-12)
	assert.Equal(t, 0.0, got[0].HitRatePos.Value)

	assert.Equal(t, models.LabelLongSpike, got[1].Label)
	assert.Equal(t, 2, got[1].Horizon)
	assert.Zero(t, got[1].Events)
	assert.False(t, got[1].Mean.Valid)

	for _, row := range got[2:] {
		assert.Equal(t, models.LabelShortSpike, row.Label)
		assert.Zero(t, row.Events)
		assert.False(t, row.Mean.Valid)
		assert.False(t, row.Median.Valid)
		assert.False(t, row.HitRatePos.Valid)
	}
	assert.Equal(t, 1, got[2].Horizon)
	assert.Equal(t, 2, got[3].Horizon)
}

func TestEventStudy_ThresholdAboveMax(t *testing.T) {
	rows := datasetRows([]float64{100, 110, 121}, []float64{10, 20, 30})
	got := StudySpikes(rows, models.LabelLongSpike, []float64{10, 20, 30}, 31, []int{1})
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Events)
	assert.False(t, got[0].Mean.Valid)
}

func TestEventStudy_DefaultHorizons(t *testing.T) {
	cfg := analysisConfig()
	cfg.Horizons = nil
	cfg.Interval = models.Interval1d
	got := NewEventStudyEngine(cfg).Run(nil)
	require.Len(t, got, 10)
	assert.Equal(t, []int{1, 2, 3, 5, 10}, []int{got[0].Horizon, got[1].Horizon, got[2].Horizon, got[3].Horizon, got[4].Horizon})
}
