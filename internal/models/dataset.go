package models

import (
	"math"
	"time"
)

// AggregatedBucket holds the liquidation totals of one interval that saw at least one event.
type AggregatedBucket struct {
	Timestamp   time.Time `json:"timestamp_utc"`
	LongLiqUSD  float64   `json:"long_liq_usd"`
	ShortLiqUSD float64   `json:"short_liq_usd"`
	LongCount   int       `json:"long_count"`
	ShortCount  int       `json:"short_count"`
}

// DatasetRow is an AggregatedBucket joined with the PriceBar of the same timestamp,
// plus derived liquidation and return fields.
type DatasetRow struct {
	AggregatedBucket
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	NetLiqUSD   float64 `json:"net_liq_usd"`
	LiqTotalUSD float64 `json:"liq_total_usd"`
	Ret         float64 `json:"ret"`
	RetNext     float64 `json:"ret_next"`
}

// Predictor column names.
const (
	PredictorLongLiqUSD  = "long_liq_usd"
	PredictorShortLiqUSD = "short_liq_usd"
	PredictorNetLiqUSD   = "net_liq_usd"
	PredictorLiqTotalUSD = "liq_total_usd"
	PredictorLongCount   = "long_count"
	PredictorShortCount  = "short_count"
)

// DefaultPredictors lists every predictor correlated against ret_next.
func DefaultPredictors() []string {
	return []string{
		PredictorLongLiqUSD, PredictorShortLiqUSD, PredictorNetLiqUSD,
		PredictorLiqTotalUSD, PredictorLongCount, PredictorShortCount,
	}
}

// IsPredictor reports whether name is a known predictor column.
func IsPredictor(name string) bool {
	for _, p := range DefaultPredictors() {
		if p == name {
			return true
		}
	}
	return false
}

// Predictor returns the value of the named predictor column.
// ok is false for unknown names and for missing (NaN) values.
func (r *DatasetRow) Predictor(name string) (v float64, ok bool) {
	switch name {
	case PredictorLongLiqUSD:
		v = r.LongLiqUSD
	case PredictorShortLiqUSD:
		v = r.ShortLiqUSD
	case PredictorNetLiqUSD:
		v = r.NetLiqUSD
	case PredictorLiqTotalUSD:
		v = r.LiqTotalUSD
	case PredictorLongCount:
		v = float64(r.LongCount)
	case PredictorShortCount:
		v = float64(r.ShortCount)
	default:
		return 0, false
	}
	return v, !math.IsNaN(v)
}
