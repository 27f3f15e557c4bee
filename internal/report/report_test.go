package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/epicast/casecast/internal/models"
)

var day0 = time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC)

func sampleReport() models.ForecastReport {
	predicted := []float64{10, 12, 14}
	actual := []float64{10, 10, 20}
	return models.ForecastReport{
		ID:             "f-1",
		StartDate:      day0,
		AnchorDate:     day0.AddDate(0, 0, 16),
		SelectedFields: []models.Field{models.DailyVaccinations, models.NewDailyCases},
		Dates:          []time.Time{day0.AddDate(0, 0, 14), day0.AddDate(0, 0, 15), day0.AddDate(0, 0, 16)},
		Predicted:      predicted,
		Actual:         actual,
		TrainActual:    []float64{4, 5, math.NaN()},
		Summary:        Summarize(predicted, actual),
		CreatedAt:      day0,
	}
}

func TestSummarize(t *testing.T) {
	Convey("Given predictions against actual values", t, func() {
		s := Summarize([]float64{10, 12, 14}, []float64{10, 10, 20})

		Convey("MAE averages absolute differences", func() {
			So(s.MAE, ShouldAlmostEqual, 8.0/3.0)
		})

		Convey("MAPE is expressed in percent", func() {
			So(s.MAPE, ShouldAlmostEqual, (0+20+30)/3.0)
		})

		Convey("A short sequence yields one partial week", func() {
			So(s.WeeklyPredicted, ShouldResemble, []float64{12})
			So(s.WeeklyActual, ShouldHaveLength, 1)
		})
	})

	Convey("Zero actual values are skipped by MAPE", t, func() {
		s := Summarize([]float64{1, 4}, []float64{0, 2})
		So(s.MAE, ShouldAlmostEqual, 1.5)
		So(s.MAPE, ShouldAlmostEqual, 100)
	})

	Convey("Empty input yields an empty summary", t, func() {
		So(Summarize(nil, nil), ShouldResemble, models.ForecastSummary{})
	})
}

func TestWeeklyAverages(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i + 1)
	}
	got := WeeklyAverages(values)
	if len(got) != 2 || got[0] != 4 || got[1] != 9 {
		t.Fatalf("unexpected weekly averages %v", got)
	}
	if len(WeeklyAverages(nil)) != 0 {
		t.Fatalf("expected no weeks for empty input")
	}
}

func TestTextSinkRenderForecast(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextSink(&buf).RenderForecast(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"forecast f-1",
		"vaccinations.daily_vaccinations, cases.new_daily_cases",
		"2021-05-17",
		"MAPE",
		"16.67%",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTextSinkRenderSeries(t *testing.T) {
	var buf bytes.Buffer
	view := models.SeriesView{
		Fields: []models.Field{models.DailyTests},
		Dates:  []time.Time{day0, day0.AddDate(0, 0, 1)},
		Values: map[string][]float64{models.DailyTests.Key(): {1.5, math.NaN()}},
	}
	if err := NewTextSink(&buf).RenderSeries(context.Background(), view); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %q", lines)
	}
	if !strings.Contains(lines[1], "1.500") || !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Fatalf("unexpected rows %q", lines)
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONSink(&buf)
	if err := sink.RenderForecast(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if doc["kind"] != "forecast" || doc["anchor_date"] != "2021-05-17" {
		t.Fatalf("unexpected document %v", doc)
	}
	train := doc["train_actual"].([]any)
	if len(train) != 3 || train[2] != nil {
		t.Fatalf("expected NaN to encode as null, got %v", train)
	}
	summary := doc["summary"].(map[string]any)
	if summary["mae"].(float64) <= 0 {
		t.Fatalf("unexpected summary %v", summary)
	}
}
