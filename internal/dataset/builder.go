// Package dataset joins aggregated liquidation buckets with price bars and derives returns.
package dataset

import (
	"sort"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// DedupeBars returns bars sorted ascending by timestamp keeping the first occurrence
// of each timestamp in input order.
func DedupeBars(bars []models.PriceBar) []models.PriceBar {
	sorted := make([]models.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	out := make([]models.PriceBar, 0, len(sorted))
	for i, b := range sorted {
		if i > 0 && b.Timestamp.Equal(sorted[i-1].Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Join inner-joins buckets and bars on exact timestamp equality. Unmatched rows on
// either side are dropped. The result is ascending by timestamp with liquidation
// net and total filled in; returns are left zero.
func Join(buckets []models.AggregatedBucket, bars []models.PriceBar) []models.DatasetRow {
	byTime := make(map[int64]models.PriceBar, len(bars))
	for _, b := range DedupeBars(bars) {
		byTime[b.Timestamp.UnixNano()] = b
	}

	sorted := make([]models.AggregatedBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	rows := make([]models.DatasetRow, 0, len(sorted))
	for _, bk := range sorted {
		bar, ok := byTime[bk.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		rows = append(rows, models.DatasetRow{
			AggregatedBucket: bk,
			Open:             bar.Open,
			High:             bar.High,
			Low:              bar.Low,
			Close:            bar.Close,
			Volume:           bar.Volume,
			NetLiqUSD:        bk.ShortLiqUSD - bk.LongLiqUSD,
			LiqTotalUSD:      bk.ShortLiqUSD + bk.LongLiqUSD,
		})
	}
	return rows
}

// simpleReturn is (to-from)/from; ok is false when from is zero.
func simpleReturn(from, to float64) (float64, bool) {
	if from == 0 {
		return 0, false
	}
	return (to - from) / from, true
}

// Build joins buckets with bars and computes ret from the previous joined row and
// ret_next to the next joined row. Adjacency is by row order in the joined table, not
// by wall-clock contiguity. Rows where either return is undefined are dropped, so the
// first and last joined rows never appear. An empty join yields an empty, non-nil slice.
func Build(buckets []models.AggregatedBucket, bars []models.PriceBar) []models.DatasetRow {
	joined := Join(buckets, bars)
	out := make([]models.DatasetRow, 0, len(joined))
	for i := 1; i < len(joined)-1; i++ {
		row := joined[i]
		ret, ok := simpleReturn(joined[i-1].Close, row.Close)
		if !ok {
			continue
		}
		retNext, ok := simpleReturn(row.Close, joined[i+1].Close)
		if !ok {
			continue
		}
		row.Ret = ret
		row.RetNext = retNext
		out = append(out, row)
	}
	return out
}
