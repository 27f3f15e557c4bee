package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/epicast/casecast/internal/models"
)

func forecastFixture(days int) *fakeSource {
	cases := ramp(days, 10, 5)
	return &fakeSource{
		domains: columns(days, map[models.Field][]float64{
			models.NewDailyCases:     cases,
			models.DailyVaccinations: ramp(days, 1000, -3),
			models.DailyTests:        ramp(days, 200, 7),
			models.PositiveRate:      ramp(days, 0.1, 0),
		}),
		corr: matrixWith(map[models.Field]float64{
			models.DailyVaccinations: -0.97,
			models.DailyTests:        0.93,
			models.PositiveRate:      0.1,
		}),
	}
}

func stubPredictor() *Predictor {
	return NewPredictor(nil, func() Classifier { return &lastLabelClassifier{} })
}

func TestForecasterForecast(t *testing.T) {
	source := forecastFixture(30)
	sink := &recordingSink{}
	anchor := baseDay.AddDate(0, 0, 29)
	start := baseDay.AddDate(0, 0, 9)
	f := NewForecaster(nil, source, stubPredictor(), anchor, sink)
	fixed := time.Date(2021, time.May, 17, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	rep, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: start, DaysToPredict: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.ID == "" || !rep.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected report identity %q %v", rep.ID, rep.CreatedAt)
	}
	if len(rep.Predicted) != 4 || len(rep.Actual) != 4 || len(rep.Dates) != 4 {
		t.Fatalf("expected 4 entries, got %d/%d/%d", len(rep.Predicted), len(rep.Actual), len(rep.Dates))
	}
	if !rep.Dates[0].Equal(baseDay.AddDate(0, 0, 26)) {
		t.Fatalf("unexpected first test date %v", rep.Dates[0])
	}
	if rep.Actual[3] != 10+5*29 {
		t.Fatalf("unexpected last actual value %v", rep.Actual[3])
	}
	if rep.Window.Train.Start != 14 || rep.Window.Train.End != 26 {
		t.Fatalf("unexpected train window %+v", rep.Window.Train)
	}
	if len(rep.TrainActual) != rep.Window.Train.Len() {
		t.Fatalf("train actual length mismatch")
	}
	wantFields := []models.Field{models.DailyVaccinations, models.NewDailyCases, models.DailyTests}
	if len(rep.SelectedFields) != len(wantFields) {
		t.Fatalf("unexpected selection %v", rep.SelectedFields)
	}
	for i, want := range wantFields {
		if rep.SelectedFields[i] != want {
			t.Fatalf("unexpected selection %v", rep.SelectedFields)
		}
	}
	if rep.Summary.MAE <= 0 || len(rep.Summary.WeeklyActual) != 1 {
		t.Fatalf("unexpected summary %+v", rep.Summary)
	}
	if len(sink.forecasts) != 1 || sink.forecasts[0].ID != rep.ID {
		t.Fatalf("expected sink to receive the report")
	}
}

func TestForecasterDefaultsAnchorToLastDate(t *testing.T) {
	f := NewForecaster(nil, forecastFixture(20), stubPredictor(), time.Time{})
	rep, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: baseDay.AddDate(0, 0, 4), DaysToPredict: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.AnchorDate.Equal(baseDay.AddDate(0, 0, 19)) {
		t.Fatalf("expected anchor at last date, got %v", rep.AnchorDate)
	}
	if rep.Window.TrainFeatures().Start != 5 {
		t.Fatalf("unexpected train start %+v", rep.Window)
	}
}

func TestForecasterRejectsInvalidRequests(t *testing.T) {
	f := NewForecaster(nil, forecastFixture(20), stubPredictor(), time.Time{})
	cases := []models.ForecastRequest{
		{StartDate: baseDay, DaysToPredict: 0},
		{StartDate: baseDay, DaysToPredict: -1},
		{DaysToPredict: 3},
	}
	for _, req := range cases {
		if _, err := f.Forecast(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected invalid request for %+v, got %v", req, err)
		}
	}
}

func TestForecasterPropagatesCoreErrors(t *testing.T) {
	t.Run("no feature clears the threshold", func(t *testing.T) {
		source := forecastFixture(20)
		source.corr.Set(models.NewDailyCases, models.NewDailyCases, 0)
		source.corr.Set(models.NewDailyCases, models.DailyVaccinations, 0)
		source.corr.Set(models.NewDailyCases, models.DailyTests, 0)
		sink := &recordingSink{}
		f := NewForecaster(nil, source, nil, time.Time{}, sink)
		_, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: baseDay.AddDate(0, 0, 19), DaysToPredict: 2})
		if !errors.Is(err, ErrFit) {
			t.Fatalf("expected ErrFit, got %v", err)
		}
		if len(sink.forecasts) != 0 {
			t.Fatalf("sink must not receive failed forecasts")
		}
	})

	t.Run("horizon too long", func(t *testing.T) {
		f := NewForecaster(nil, forecastFixture(6), stubPredictor(), time.Time{})
		_, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: baseDay.AddDate(0, 0, 5), DaysToPredict: 3})
		if !errors.Is(err, ErrInsufficientHistory) {
			t.Fatalf("expected ErrInsufficientHistory, got %v", err)
		}
	})

	t.Run("source failure", func(t *testing.T) {
		boom := errors.New("disk gone")
		f := NewForecaster(nil, &fakeSource{err: boom}, stubPredictor(), time.Time{})
		_, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: baseDay, DaysToPredict: 1})
		if !errors.Is(err, boom) {
			t.Fatalf("expected source error, got %v", err)
		}
	})
}

func TestForecasterSinkFailureIsNotFatal(t *testing.T) {
	sink := &recordingSink{fail: true}
	f := NewForecaster(nil, forecastFixture(20), stubPredictor(), time.Time{}, sink)
	if _, err := f.Forecast(context.Background(), models.ForecastRequest{StartDate: baseDay.AddDate(0, 0, 9), DaysToPredict: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.forecasts) != 1 {
		t.Fatalf("expected one render attempt")
	}
}

func TestForecasterSeriesAndAutocorrelation(t *testing.T) {
	sink := &recordingSink{}
	f := NewForecaster(nil, forecastFixture(20), stubPredictor(), time.Time{}, sink)
	ctx := context.Background()

	view, err := f.Series(ctx, []models.Field{models.NewDailyCases, models.DailyTests}, baseDay.AddDate(0, 0, 2), baseDay.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Dates) != 4 || view.Values[models.DailyTests.Key()][0] != 214 {
		t.Fatalf("unexpected view %+v", view)
	}
	if len(sink.views) != 1 {
		t.Fatalf("expected series to be rendered")
	}

	if _, err := f.Series(ctx, nil, baseDay, baseDay); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for empty field list, got %v", err)
	}
	if _, err := f.Series(ctx, []models.Field{models.DailyTests}, baseDay.AddDate(0, 0, 3), baseDay); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for inverted range, got %v", err)
	}

	acf, err := f.Autocorrelation(ctx, models.NewDailyCases, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acf) != 3 || acf[1] < 0.99 {
		t.Fatalf("unexpected autocorrelation %v", acf)
	}
	if _, err := f.Autocorrelation(ctx, models.NewDailyCases, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for zero lag, got %v", err)
	}
}
