// Package aggregate buckets liquidation events into fixed-width, right-closed intervals.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/liqstudy/internal/models"
)

type accumulator struct {
	label      time.Time
	longUSD    decimal.Decimal
	shortUSD   decimal.Decimal
	longCount  int
	shortCount int
}

func (a *accumulator) add(ev models.LiquidationEvent) {
	amount := decimal.NewFromFloat(ev.AmountUSD)
	switch ev.Side {
	case models.SideLong:
		a.longUSD = a.longUSD.Add(amount)
		a.longCount++
	case models.SideShort:
		a.shortUSD = a.shortUSD.Add(amount)
		a.shortCount++
	}
}

func (a *accumulator) empty() bool {
	return a.longCount == 0 && a.shortCount == 0
}

func (a *accumulator) bucket() models.AggregatedBucket {
	return models.AggregatedBucket{
		Timestamp:   a.label,
		LongLiqUSD:  a.longUSD.InexactFloat64(),
		ShortLiqUSD: a.shortUSD.InexactFloat64(),
		LongCount:   a.longCount,
		ShortCount:  a.shortCount,
	}
}

// Aggregate assigns every event to the bucket labelled by its closing instant and
// returns one row per bucket holding at least one event, ascending by timestamp.
// Events are summed in timestamp order; USD totals are accumulated exactly.
func Aggregate(events []models.LiquidationEvent, interval models.Interval) []models.AggregatedBucket {
	sorted := make([]models.LiquidationEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	byLabel := make(map[int64]*accumulator)
	for _, ev := range sorted {
		label := interval.BucketLabel(ev.Timestamp)
		key := label.Unix()
		acc, ok := byLabel[key]
		if !ok {
			acc = &accumulator{label: label}
			byLabel[key] = acc
		}
		acc.add(ev)
	}

	out := make([]models.AggregatedBucket, 0, len(byLabel))
	for _, acc := range byLabel {
		if acc.empty() {
			continue
		}
		out = append(out, acc.bucket())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
