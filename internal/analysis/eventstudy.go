package analysis

import (
	"math"
	"sort"

	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/models"
)

// EventStudyEngine measures forward returns after long and short liquidation spikes.
type EventStudyEngine struct {
	percentile float64
	horizons   []int
}

// NewEventStudyEngine builds an engine using cfg's spike percentile and horizons.
func NewEventStudyEngine(cfg config.AnalysisConfig) *EventStudyEngine {
	return &EventStudyEngine{
		percentile: cfg.SpikePercentile,
		horizons:   cfg.ResolvedHorizons(),
	}
}

// Thresholds holds the spike threshold of each event class. An unreachable threshold
// is +Inf.
type Thresholds struct {
	Long  float64
	Short float64
}

// SpikeThreshold returns the p-th percentile of the strictly positive values, missing
// values counting as zero. With no positive value, including an empty input, the
// threshold is +Inf and no spike can fire.
func SpikeThreshold(values []float64, p float64) float64 {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 {
		return math.Inf(1)
	}
	sort.Float64s(positive)
	return percentile(positive, p)
}

// Thresholds computes the spike thresholds of rows.
func (e *EventStudyEngine) Thresholds(rows []models.DatasetRow) Thresholds {
	long, short := sideValues(rows)
	return Thresholds{
		Long:  SpikeThreshold(long, e.percentile),
		Short: SpikeThreshold(short, e.percentile),
	}
}

// Run returns one row per (label, horizon) sorted by label then horizon.
func (e *EventStudyEngine) Run(rows []models.DatasetRow) []models.EventStudyRow {
	thr := e.Thresholds(rows)
	long, short := sideValues(rows)

	out := StudySpikes(rows, models.LabelLongSpike, long, thr.Long, e.horizons)
	out = append(out, StudySpikes(rows, models.LabelShortSpike, short, thr.Short, e.horizons)...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Horizon < out[j].Horizon
	})
	return out
}

func sideValues(rows []models.DatasetRow) (long, short []float64) {
	long = make([]float64, len(rows))
	short = make([]float64, len(rows))
	for i := range rows {
		long[i] = rows[i].LongLiqUSD
		short[i] = rows[i].ShortLiqUSD
	}
	return long, short
}

// ForwardReturn is (close[i+k]-close[i])/close[i] over row order; ok is false past
// the end of rows or when close[i] is zero.
func ForwardReturn(rows []models.DatasetRow, i, k int) (float64, bool) {
	j := i + k
	if j >= len(rows) || rows[i].Close == 0 {
		return 0, false
	}
	v := (rows[j].Close - rows[i].Close) / rows[i].Close
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// StudySpikes flags rows whose value is at or above threshold and summarizes their
// k-bucket forward returns for each horizon. values is aligned with rows; NaN never
// fires. Horizons without a defined forward return report zero events and undefined
// statistics.
func StudySpikes(rows []models.DatasetRow, label string, values []float64, threshold float64, horizons []int) []models.EventStudyRow {
	var fired []int
	if !math.IsInf(threshold, 1) {
		for i, v := range values {
			if v >= threshold {
				fired = append(fired, i)
			}
		}
	}

	out := make([]models.EventStudyRow, 0, len(horizons))
	for _, k := range horizons {
		fwd := make([]float64, 0, len(fired))
		for _, i := range fired {
			if r, ok := ForwardReturn(rows, i, k); ok {
				fwd = append(fwd, r)
			}
		}
		out = append(out, summarize(label, k, fwd))
	}
	return out
}

func summarize(label string, horizon int, fwd []float64) models.EventStudyRow {
	row := models.EventStudyRow{Label: label, Horizon: horizon, Events: len(fwd)}
	if len(fwd) == 0 {
		return row
	}
	positive := 0
	for _, v := range fwd {
		if v > 0 {
			positive++
		}
	}
	row.Mean = models.Defined(mean(fwd))
	row.Median = models.Defined(median(fwd))
	row.HitRatePos = models.Defined(float64(positive) / float64(len(fwd)))
	return row
}
