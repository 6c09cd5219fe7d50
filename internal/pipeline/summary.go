package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rewired-gh/liqstudy/internal/models"
)

const missingCell = "—"

func cell(s models.Stat) string {
	if !s.Valid {
		return missingCell
	}
	return strconv.FormatFloat(s.Value, 'f', 4, 64)
}

// FormatSummary writes the correlation table and a horizon × label pivot of event
// study means to w.
func FormatSummary(w io.Writer, report *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Correlation (ret_next), interval %s, %d rows:\n", report.Interval, report.Rows)
	fmt.Fprintln(tw, "predictor\tpearson\tspearman\tn")
	for _, r := range report.Correlation {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Predictor, cell(r.Pearson), cell(r.Spearman), r.N)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var labels []string
	var horizons []int
	means := make(map[string]map[int]models.Stat)
	for _, r := range report.EventStudy {
		if _, ok := means[r.Label]; !ok {
			means[r.Label] = make(map[int]models.Stat)
			labels = append(labels, r.Label)
		}
		if !containsInt(horizons, r.Horizon) {
			horizons = append(horizons, r.Horizon)
		}
		means[r.Label][r.Horizon] = r.Mean
	}
	sort.Strings(labels)
	sort.Ints(horizons)

	fmt.Fprintln(tw, "\nEvent study (mean forward returns):")
	fmt.Fprint(tw, "horizon_k")
	for _, l := range labels {
		fmt.Fprintf(tw, "\t%s", l)
	}
	fmt.Fprintln(tw)
	for _, k := range horizons {
		fmt.Fprintf(tw, "%d", k)
		for _, l := range labels {
			// absent (label, horizon) pairs render like undefined means
			fmt.Fprintf(tw, "\t%s", cell(means[l][k]))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
