package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/epicast/casecast/internal/models"
)

// TextSink renders forecasts and series views as aligned plain-text tables.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink returns a sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// RenderForecast writes the selected features, the day-by-day comparison and the summary.
func (s *TextSink) RenderForecast(_ context.Context, rep models.ForecastReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(rep.SelectedFields))
	for i, f := range rep.SelectedFields {
		keys[i] = f.Key()
	}

	tw := tabwriter.NewWriter(s.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "forecast %s\n", rep.ID)
	fmt.Fprintf(tw, "start\t%s\tanchor\t%s\n", rep.StartDate.Format(models.DateLayout), rep.AnchorDate.Format(models.DateLayout))
	fmt.Fprintf(tw, "features\t%s\n", strings.Join(keys, ", "))
	fmt.Fprintf(tw, "training days\t%d\n\n", len(rep.TrainActual))

	fmt.Fprintln(tw, "date\tactual\tpredicted\terror")
	for i, day := range rep.Dates {
		if i >= len(rep.Predicted) || i >= len(rep.Actual) {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			day.Format(models.DateLayout),
			number(rep.Actual[i]),
			number(rep.Predicted[i]),
			number(rep.Predicted[i]-rep.Actual[i]),
		)
	}

	fmt.Fprintf(tw, "\nMAE\t%s\n", number(rep.Summary.MAE))
	fmt.Fprintf(tw, "MAPE\t%.2f%%\n", rep.Summary.MAPE)
	if len(rep.Summary.WeeklyActual) > 0 {
		fmt.Fprintln(tw, "\nweek\tavg actual\tavg predicted")
		for i := range rep.Summary.WeeklyActual {
			if i >= len(rep.Summary.WeeklyPredicted) {
				break
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, number(rep.Summary.WeeklyActual[i]), number(rep.Summary.WeeklyPredicted[i]))
		}
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

// RenderSeries writes one row per date with a column per field.
func (s *TextSink) RenderSeries(_ context.Context, view models.SeriesView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tw := tabwriter.NewWriter(s.w, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(view.Fields)+1)
	header = append(header, "date")
	for _, f := range view.Fields {
		header = append(header, f.Key())
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, day := range view.Dates {
		row := make([]string, 0, len(header))
		row = append(row, day.Format(models.DateLayout))
		for _, f := range view.Fields {
			values := view.Values[f.Key()]
			if i < len(values) {
				row = append(row, number(values[i]))
			} else {
				row = append(row, "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func number(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3f", v)
}
