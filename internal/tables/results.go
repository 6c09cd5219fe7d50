package tables

import (
	"strconv"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// CorrelationColumns is the CorrelationRow table header.
var CorrelationColumns = []string{"predictor", "pearson", "spearman", "n"}

// EventStudyColumns is the EventStudyRow table header.
var EventStudyColumns = []string{"label", "horizon_k", "n_events", "mean", "median", "hit_rate_pos"}

// WriteCorrelations writes a CorrelationRow table; undefined coefficients are written
// as models.UndefinedMarker.
func WriteCorrelations(path string, rows []models.CorrelationRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Predictor,
			r.Pearson.String(),
			r.Spearman.String(),
			strconv.Itoa(r.N),
		})
	}
	return writeTable(path, CorrelationColumns, out)
}

// WriteEventStudy writes an EventStudyRow table.
func WriteEventStudy(path string, rows []models.EventStudyRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Label,
			strconv.Itoa(r.Horizon),
			strconv.Itoa(r.Events),
			r.Mean.String(),
			r.Median.String(),
			r.HitRatePos.String(),
		})
	}
	return writeTable(path, EventStudyColumns, out)
}

// ReadCorrelations reads a CorrelationRow table.
func ReadCorrelations(path string) ([]models.CorrelationRow, error) {
	t, err := openTable(path, CorrelationColumns)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	rows := []models.CorrelationRow{}
	err = t.each(func(rec record, _ int) error {
		var err error
		r := models.CorrelationRow{Predictor: rec.get("predictor")}
		if r.Pearson, err = rec.stat("pearson"); err != nil {
			return err
		}
		if r.Spearman, err = rec.stat("spearman"); err != nil {
			return err
		}
		if r.N, err = rec.count("n"); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadEventStudy reads an EventStudyRow table.
func ReadEventStudy(path string) ([]models.EventStudyRow, error) {
	t, err := openTable(path, EventStudyColumns)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	rows := []models.EventStudyRow{}
	err = t.each(func(rec record, _ int) error {
		var err error
		r := models.EventStudyRow{Label: rec.get("label")}
		if r.Horizon, err = rec.count("horizon_k"); err != nil {
			return err
		}
		if r.Events, err = rec.count("n_events"); err != nil {
			return err
		}
		if r.Mean, err = rec.stat("mean"); err != nil {
			return err
		}
		if r.Median, err = rec.stat("median"); err != nil {
			return err
		}
		if r.HitRatePos, err = rec.stat("hit_rate_pos"); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
