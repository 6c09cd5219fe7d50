package tables

import (
	"sort"
	"strconv"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// DatasetColumns is the DatasetRow table header.
var DatasetColumns = []string{
	"timestamp_utc",
	"long_liq_usd", "short_liq_usd", "long_count", "short_count",
	"open", "high", "low", "close", "volume",
	"net_liq_usd", "liq_total_usd", "ret", "ret_next",
}

// datasetRequired are the columns the analysis stage cannot do without.
var datasetRequired = []string{
	"timestamp_utc", "close", "ret_next",
	"long_liq_usd", "short_liq_usd", "net_liq_usd", "liq_total_usd",
	"long_count", "short_count",
}

// ReadDataset reads a DatasetRow table sorted ascending by timestamp. Blank or NaN
// cells read as NaN and are treated as missing by the analysis engines.
func ReadDataset(path string) ([]models.DatasetRow, error) {
	t, err := openTable(path, datasetRequired)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	rows := []models.DatasetRow{}
	err = t.each(func(rec record, _ int) error {
		ts, err := models.ParseTimestamp(rec.get("timestamp_utc"))
		if err != nil {
			return err
		}
		r := models.DatasetRow{}
		r.Timestamp = ts
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"long_liq_usd", &r.LongLiqUSD},
			{"short_liq_usd", &r.ShortLiqUSD},
			{"open", &r.Open},
			{"high", &r.High},
			{"low", &r.Low},
			{"close", &r.Close},
			{"volume", &r.Volume},
			{"net_liq_usd", &r.NetLiqUSD},
			{"liq_total_usd", &r.LiqTotalUSD},
			{"ret", &r.Ret},
			{"ret_next", &r.RetNext},
		} {
			if *f.dst, err = rec.float(f.name); err != nil {
				return err
			}
		}
		if r.LongCount, err = rec.count("long_count"); err != nil {
			return err
		}
		if r.ShortCount, err = rec.count("short_count"); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return rows, nil
}

// WriteDataset writes a DatasetRow table.
func WriteDataset(path string, rows []models.DatasetRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			models.FormatTimestamp(r.Timestamp),
			formatFloat(r.LongLiqUSD),
			formatFloat(r.ShortLiqUSD),
			strconv.Itoa(r.LongCount),
			strconv.Itoa(r.ShortCount),
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			formatFloat(r.Volume),
			formatFloat(r.NetLiqUSD),
			formatFloat(r.LiqTotalUSD),
			formatFloat(r.Ret),
			formatFloat(r.RetNext),
		})
	}
	return writeTable(path, DatasetColumns, out)
}
