package tables

import (
	"errors"
	"math"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// PriceColumns is the PriceBar table header.
var PriceColumns = []string{"timestamp_utc", "open", "high", "low", "close", "volume"}

// ReadPriceBars reads a PriceBar table. Only timestamp_utc and close are required;
// absent OHLV columns read as NaN.
func ReadPriceBars(path string) ([]models.PriceBar, error) {
	t, err := openTable(path, []string{"timestamp_utc", "close"})
	if err != nil {
		return nil, err
	}
	defer t.Close()

	bars := []models.PriceBar{}
	err = t.each(func(rec record, _ int) error {
		ts, err := models.ParseTimestamp(rec.get("timestamp_utc"))
		if err != nil {
			return err
		}
		bar := models.PriceBar{Timestamp: ts}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"volume", &bar.Volume},
		} {
			if *f.dst, err = rec.float(f.name); err != nil {
				return err
			}
		}
		if math.IsNaN(bar.Close) {
			return errors.New("column close: value is missing")
		}
		bars = append(bars, bar)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// WritePriceBars writes a PriceBar table.
func WritePriceBars(path string, bars []models.PriceBar) error {
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []string{
			models.FormatTimestamp(b.Timestamp),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		})
	}
	return writeTable(path, PriceColumns, rows)
}
