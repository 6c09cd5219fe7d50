package tables

import (
	"math"
	"strconv"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// BucketColumns is the AggregatedBucket table header.
var BucketColumns = []string{"timestamp_utc", "long_liq_usd", "short_liq_usd", "long_count", "short_count"}

// ReadBuckets reads an AggregatedBucket table. Missing USD cells read as zero.
func ReadBuckets(path string) ([]models.AggregatedBucket, error) {
	t, err := openTable(path, BucketColumns)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	buckets := []models.AggregatedBucket{}
	err = t.each(func(rec record, _ int) error {
		ts, err := models.ParseTimestamp(rec.get("timestamp_utc"))
		if err != nil {
			return err
		}
		b := models.AggregatedBucket{Timestamp: ts}
		if b.LongLiqUSD, err = rec.float("long_liq_usd"); err != nil {
			return err
		}
		if b.ShortLiqUSD, err = rec.float("short_liq_usd"); err != nil {
			return err
		}
		if b.LongCount, err = rec.count("long_count"); err != nil {
			return err
		}
		if b.ShortCount, err = rec.count("short_count"); err != nil {
			return err
		}
		if math.IsNaN(b.LongLiqUSD) {
			b.LongLiqUSD = 0
		}
		if math.IsNaN(b.ShortLiqUSD) {
			b.ShortLiqUSD = 0
		}
		buckets = append(buckets, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// WriteBuckets writes an AggregatedBucket table.
func WriteBuckets(path string, buckets []models.AggregatedBucket) error {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{
			models.FormatTimestamp(b.Timestamp),
			formatFloat(b.LongLiqUSD),
			formatFloat(b.ShortLiqUSD),
			strconv.Itoa(b.LongCount),
			strconv.Itoa(b.ShortCount),
		})
	}
	return writeTable(path, BucketColumns, rows)
}
