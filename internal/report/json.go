package report

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"

	"github.com/epicast/casecast/internal/models"
)

// ForecastDocument is the JSON shape of a forecast report.
type ForecastDocument struct {
	Kind           string          `json:"kind"`
	ID             string          `json:"id"`
	StartDate      string          `json:"start_date"`
	AnchorDate     string          `json:"anchor_date"`
	SelectedFields []string        `json:"selected_fields"`
	Dates          []string        `json:"dates"`
	Predicted      []*float64      `json:"predicted"`
	Actual         []*float64      `json:"actual"`
	TrainActual    []*float64      `json:"train_actual"`
	Summary        SummaryDocument `json:"summary"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SummaryDocument is the JSON shape of a forecast summary.
type SummaryDocument struct {
	MAE             float64    `json:"mae"`
	MAPE            float64    `json:"mape"`
	WeeklyPredicted []*float64 `json:"weekly_predicted"`
	WeeklyActual    []*float64 `json:"weekly_actual"`
}

// SeriesDocument is the JSON shape of a series view.
type SeriesDocument struct {
	Kind   string                `json:"kind"`
	Fields []string              `json:"fields"`
	Dates  []string              `json:"dates"`
	Series map[string][]*float64 `json:"series"`
}

// NewForecastDocument converts a report. Missing values become null.
func NewForecastDocument(rep models.ForecastReport) ForecastDocument {
	fields := make([]string, len(rep.SelectedFields))
	for i, f := range rep.SelectedFields {
		fields[i] = f.Key()
	}
	return ForecastDocument{
		Kind:           "forecast",
		ID:             rep.ID,
		StartDate:      rep.StartDate.Format(models.DateLayout),
		AnchorDate:     rep.AnchorDate.Format(models.DateLayout),
		SelectedFields: fields,
		Dates:          dateStrings(rep.Dates),
		Predicted:      nullable(rep.Predicted),
		Actual:         nullable(rep.Actual),
		TrainActual:    nullable(rep.TrainActual),
		Summary: SummaryDocument{
			MAE:             rep.Summary.MAE,
			MAPE:            rep.Summary.MAPE,
			WeeklyPredicted: nullable(rep.Summary.WeeklyPredicted),
			WeeklyActual:    nullable(rep.Summary.WeeklyActual),
		},
		CreatedAt: rep.CreatedAt,
	}
}

// NewSeriesDocument converts a series view.
func NewSeriesDocument(view models.SeriesView) SeriesDocument {
	doc := SeriesDocument{
		Kind:   "series",
		Fields: make([]string, len(view.Fields)),
		Dates:  dateStrings(view.Dates),
		Series: make(map[string][]*float64, len(view.Fields)),
	}
	for i, f := range view.Fields {
		doc.Fields[i] = f.Key()
		doc.Series[f.Key()] = nullable(view.Values[f.Key()])
	}
	return doc
}

// JSONSink writes one JSON document per line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink returns a sink encoding to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// RenderForecast encodes the report.
func (s *JSONSink) RenderForecast(_ context.Context, rep models.ForecastReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(NewForecastDocument(rep))
}

// RenderSeries encodes the view.
func (s *JSONSink) RenderSeries(_ context.Context, view models.SeriesView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(NewSeriesDocument(view))
}

func dateStrings(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(models.DateLayout)
	}
	return out
}

func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = &v
	}
	return out
}
