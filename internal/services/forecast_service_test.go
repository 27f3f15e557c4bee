package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epicast/casecast/internal/engine"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/utils"
)

type forecasterStub struct {
	lastReq   models.ForecastRequest
	lastRange [2]time.Time
	report    models.ForecastReport
	view      models.SeriesView
	lags      map[int]float64
	err       error
}

func (f *forecasterStub) Forecast(_ context.Context, req models.ForecastRequest) (models.ForecastReport, error) {
	f.lastReq = req
	return f.report, f.err
}

func (f *forecasterStub) Series(_ context.Context, _ []models.Field, from, to time.Time) (models.SeriesView, error) {
	f.lastRange = [2]time.Time{from, to}
	return f.view, f.err
}

func (f *forecasterStub) Autocorrelation(context.Context, models.Field, int) (map[int]float64, error) {
	return f.lags, f.err
}

func structOf(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestForecastAppliesDefaultHorizon(t *testing.T) {
	stub := &forecasterStub{report: models.ForecastReport{ID: "f-1", SelectedFields: []models.Field{models.NewDailyCases}}}
	service := NewForecastService(nil, stub, 7)

	out, err := service.Forecast(context.Background(), structOf(t, map[string]any{"start_date": "2021-04-01"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastReq.DaysToPredict != 7 {
		t.Fatalf("expected default horizon, got %d", stub.lastReq.DaysToPredict)
	}
	if out.AsMap()["id"] != "f-1" {
		t.Fatalf("unexpected response %v", out.AsMap())
	}

	if _, err := service.Forecast(context.Background(), structOf(t, map[string]any{"start_date": "2021-04-01", "days_to_predict": 0})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastReq.DaysToPredict != 0 {
		t.Fatalf("explicit zero must reach the engine for validation, got %d", stub.lastReq.DaysToPredict)
	}
}

func TestForecastMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid request", fmt.Errorf("%w: days", engine.ErrInvalidRequest), codes.InvalidArgument},
		{"insufficient history", fmt.Errorf("build window: %w", &engine.InsufficientHistoryError{Offset: 90, Horizon: 7, Length: 60}), codes.FailedPrecondition},
		{"missing field", &engine.MissingFieldError{Field: "tests.daily_tests", Where: "correlation matrix"}, codes.FailedPrecondition},
		{"fit failure", &engine.FitError{Reason: "single class"}, codes.FailedPrecondition},
		{"data source", fmt.Errorf("load tests: %w", utils.NewAppError("csv.load", "open tests file", errors.New("denied"))), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"unknown", errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := NewForecastService(nil, &forecasterStub{err: tc.err}, 7)
			_, err := service.Forecast(context.Background(), structOf(t, map[string]any{"start_date": "2021-04-01", "days_to_predict": 3}))
			if status.Code(err) != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestForecastRejectsMalformedRequests(t *testing.T) {
	service := NewForecastService(nil, &forecasterStub{}, 7)
	if _, err := service.Forecast(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for nil request, got %v", err)
	}
	if _, err := service.Forecast(context.Background(), structOf(t, map[string]any{"days_to_predict": 3})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument without start date, got %v", err)
	}

	unconfigured := NewForecastService(nil, nil, 7)
	if _, err := unconfigured.Forecast(context.Background(), structOf(t, map[string]any{"start_date": "2021-04-01"})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition without forecaster, got %v", err)
	}
}

func TestSeriesAndAutocorrelation(t *testing.T) {
	day := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	stub := &forecasterStub{
		view: models.SeriesView{
			Fields: []models.Field{models.DailyTests},
			Dates:  []time.Time{day},
			Values: map[string][]float64{models.DailyTests.Key(): {10}},
		},
		lags: map[int]float64{1: 0.8},
	}
	service := NewForecastService(nil, stub, 7)
	ctx := context.Background()

	out, err := service.Series(ctx, structOf(t, map[string]any{"fields": []any{"tests.daily_tests"}, "from": "2021-03-01", "to": "2021-03-04"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stub.lastRange[1].Equal(day.AddDate(0, 0, 3)) {
		t.Fatalf("unexpected range %v", stub.lastRange)
	}
	if _, ok := out.AsMap()["series"].(map[string]any)["tests.daily_tests"]; !ok {
		t.Fatalf("unexpected series response %v", out.AsMap())
	}

	acf, err := service.Autocorrelation(ctx, structOf(t, map[string]any{"field": "cases.new_daily_cases", "max_lag": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acf.AsMap()["lags"].(map[string]any)["1"] != 0.8 {
		t.Fatalf("unexpected autocorrelation %v", acf.AsMap())
	}

	stub.err = &engine.MissingFieldError{Field: "tests.daily_tests", Where: "timeline"}
	if _, err := service.Series(ctx, structOf(t, map[string]any{"fields": []any{"tests.daily_tests"}, "from": "2021-03-01", "to": "2021-03-04"})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	if _, err := service.Autocorrelation(ctx, structOf(t, map[string]any{"field": "bogus"})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for unknown field, got %v", err)
	}
}
