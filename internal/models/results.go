package models

import (
	"math"
	"strconv"
)

// UndefinedMarker is how an undefined statistic is written to a result table.
const UndefinedMarker = "NaN"

// Stat is a statistic that may be undefined for lack of data.
// The zero value is undefined.
type Stat struct {
	Value float64
	Valid bool
}

// Defined wraps v. NaN and infinities are treated as undefined.
func Defined(v float64) Stat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Stat{}
	}
	return Stat{Value: v, Valid: true}
}

// Float64 returns the value, or NaN when undefined.
func (s Stat) Float64() float64 {
	if !s.Valid {
		return math.NaN()
	}
	return s.Value
}

func (s Stat) String() string {
	if !s.Valid {
		return UndefinedMarker
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// CorrelationRow is the association between one predictor and ret_next.
type CorrelationRow struct {
	Predictor string
	Pearson   Stat
	Spearman  Stat
	N         int
}

// Event study labels.
const (
	LabelLongSpike  = "LONG_SPIKE"
	LabelShortSpike = "SHORT_SPIKE"
)

// EventStudyRow summarizes forward returns after one event class at one horizon.
type EventStudyRow struct {
	Label      string
	Horizon    int
	Events     int
	Mean       Stat
	Median     Stat
	HitRatePos Stat
}
