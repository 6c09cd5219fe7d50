package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/liqstudy/internal/models"
	"github.com/rewired-gh/liqstudy/internal/parser"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
}

func TestAggregate_SingleHourBucket(t *testing.T) {
	msgs := []models.RawMessage{
		{ID: 1, Timestamp: at(10, 5), Text: "Liquidated Long: Buy $12,500 on BTCUSDT at 64000"},
		{ID: 2, Timestamp: at(10, 40), Text: "Liquidated Short: Sell $8,000 on BTCUSDT at 64100"},
	}
	events := parser.ParseMessages(msgs, "BTC").Events

	buckets := Aggregate(events, models.Interval1h)
	require.Len(t, buckets, 1)
	assert.Equal(t, models.AggregatedBucket{
		Timestamp:   at(11, 0),
		LongLiqUSD:  12500,
		ShortLiqUSD: 8000,
		LongCount:   1,
		ShortCount:  1,
	}, buckets[0])
}

func TestAggregate_SortedAndSparse(t *testing.T) {
	events := []models.LiquidationEvent{
		{Side: models.SideShort, AmountUSD: 5, Timestamp: at(14, 30)},
		{Side: models.SideLong, AmountUSD: 1, Timestamp: at(9, 10)},
		{Side: models.SideLong, AmountUSD: 2, Timestamp: at(9, 50)},
		{Side: models.SideLong, AmountUSD: 3, Timestamp: at(10, 0)},
	}

	buckets := Aggregate(events, models.Interval1h)
	require.Len(t, buckets, 2)

	assert.Equal(t, at(10, 0), buckets[0].Timestamp)
	assert.Equal(t, 6.0, buckets[0].LongLiqUSD)
	assert.Equal(t, 3, buckets[0].LongCount)
	assert.Equal(t, 0, buckets[0].ShortCount)

	// 11:00 through 14:00 saw nothing and are omitted.
	assert.Equal(t, at(15, 0), buckets[1].Timestamp)
	assert.Equal(t, 5.0, buckets[1].ShortLiqUSD)
	assert.Equal(t, 1, buckets[1].ShortCount)
}

func TestAggregate_Daily(t *testing.T) {
	events := []models.LiquidationEvent{
		{Side: models.SideLong, AmountUSD: 100, Timestamp: at(1, 0)},
		{Side: models.SideShort, AmountUSD: 50, Timestamp: at(23, 59)},
	}
	buckets := Aggregate(events, models.Interval1d)
	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), buckets[0].Timestamp)
	assert.Equal(t, 100.0, buckets[0].LongLiqUSD)
	assert.Equal(t, 50.0, buckets[0].ShortLiqUSD)
}

func TestAggregate_ConservesTotals(t *testing.T) {
	var events []models.LiquidationEvent
	var total float64
	for i := 0; i < 200; i++ {
		side := models.SideLong
		if i%3 == 0 {
			side = models.SideShort
		}
		amount := float64(i)*10.1 + 0.07
		total += amount
		events = append(events, models.LiquidationEvent{
			Side:      side,
			AmountUSD: amount,
			Timestamp: at(0, 0).Add(time.Duration(i*17) * time.Minute),
		})
	}

	buckets := Aggregate(events, models.Interval1h)
	var sum float64
	var count int
	for i, b := range buckets {
		assert.False(t, b.LongCount == 0 && b.ShortCount == 0, "empty bucket emitted")
		if i > 0 {
			assert.True(t, buckets[i-1].Timestamp.Before(b.Timestamp))
		}
		sum += b.LongLiqUSD + b.ShortLiqUSD
		count += b.LongCount + b.ShortCount
	}
	assert.InDelta(t, total, sum, 1e-6)
	assert.Equal(t, len(events), count)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	events := []models.LiquidationEvent{
		{Side: models.SideLong, AmountUSD: 0.1, Timestamp: at(10, 1)},
		{Side: models.SideLong, AmountUSD: 0.2, Timestamp: at(10, 2)},
		{Side: models.SideLong, AmountUSD: 0.3, Timestamp: at(10, 3)},
	}
	reversed := []models.LiquidationEvent{events[2], events[1], events[0]}
	assert.Equal(t, Aggregate(events, models.Interval1h), Aggregate(reversed, models.Interval1h))
	assert.Equal(t, 0.6, Aggregate(events, models.Interval1h)[0].LongLiqUSD)
}

func TestAggregate_Empty(t *testing.T) {
	buckets := Aggregate(nil, models.Interval1h)
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}
