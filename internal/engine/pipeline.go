package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/epicast/casecast/internal/dataset"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/report"
)

// DataSource supplies the three domain collections and the precomputed correlation matrix.
type DataSource interface {
	Vaccinations(ctx context.Context) (models.DomainRecords, error)
	Tests(ctx context.Context) (models.DomainRecords, error)
	CaseGrowth(ctx context.Context) (models.DomainRecords, error)
	Correlations(ctx context.Context) (models.CorrelationMatrix, error)
}

// Sink consumes forecast output and series views for display.
type Sink interface {
	RenderForecast(ctx context.Context, rep models.ForecastReport) error
	RenderSeries(ctx context.Context, view models.SeriesView) error
}

// Forecaster drives DataSource -> FeatureSelector -> BuildWindow -> Predictor -> Sink.
type Forecaster struct {
	logger    *slog.Logger
	source    DataSource
	selector  *FeatureSelector
	predictor *Predictor
	sinks     []Sink
	target    models.Field
	anchor    time.Time
	now       func() time.Time
}

// NewForecaster constructs a Forecaster. A zero anchor means the last date of the data.
func NewForecaster(logger *slog.Logger, source DataSource, predictor *Predictor, anchor time.Time, sinks ...Sink) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	if predictor == nil {
		predictor = NewPredictor(nil, nil)
	}
	if !anchor.IsZero() {
		anchor = models.TruncateDay(anchor)
	}
	return &Forecaster{
		logger:    logger,
		source:    source,
		selector:  NewFeatureSelector(),
		predictor: predictor,
		sinks:     sinks,
		target:    models.NewDailyCases,
		anchor:    anchor,
		now:       time.Now,
	}
}

// Target returns the forecast field.
func (f *Forecaster) Target() models.Field { return f.target }

// Forecast runs one prediction and hands the report to every sink.
func (f *Forecaster) Forecast(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error) {
	if req.DaysToPredict <= 0 {
		return models.ForecastReport{}, invalidf("days to predict must be positive, got %d", req.DaysToPredict)
	}
	if req.StartDate.IsZero() {
		return models.ForecastReport{}, invalidf("start date is required")
	}
	if f.source == nil {
		return models.ForecastReport{}, fmt.Errorf("data source not configured")
	}

	tl, err := f.loadTimeline(ctx)
	if err != nil {
		return models.ForecastReport{}, err
	}
	corr, err := f.source.Correlations(ctx)
	if err != nil {
		return models.ForecastReport{}, fmt.Errorf("load correlations: %w", err)
	}

	anchor := f.anchor
	if anchor.IsZero() {
		anchor = tl.Last()
	}

	features, err := f.selector.Select(f.target, corr, tl)
	if err != nil {
		return models.ForecastReport{}, fmt.Errorf("select features: %w", err)
	}
	targetSeries, ok := tl.Filled(f.target)
	if !ok {
		return models.ForecastReport{}, &MissingFieldError{Field: f.target.Key(), Where: "timeline"}
	}
	window, err := BuildWindow(anchor, tl.Len(), req.StartDate, req.DaysToPredict)
	if err != nil {
		return models.ForecastReport{}, fmt.Errorf("build window: %w", err)
	}
	f.logger.Debug("forecast window",
		slog.Int("train_start", window.Train.Start),
		slog.Int("train_end", window.Train.End),
		slog.Int("test_start", window.Test.Start),
		slog.Int("features", features.Len()),
	)

	predicted, err := f.predictor.Predict(features, targetSeries, window)
	if err != nil {
		return models.ForecastReport{}, fmt.Errorf("predict: %w", err)
	}

	actual := append([]float64(nil), targetSeries[window.Test.Start:window.Test.End]...)
	rep := models.ForecastReport{
		ID:             uuid.NewString(),
		StartDate:      models.TruncateDay(req.StartDate),
		AnchorDate:     anchor,
		SelectedFields: features.Fields,
		Window:         window,
		Dates:          tl.Dates()[window.Test.Start:window.Test.End],
		Predicted:      predicted,
		Actual:         actual,
		TrainActual:    append([]float64(nil), targetSeries[window.Train.Start:window.Train.End]...),
		Summary:        report.Summarize(predicted, actual),
		CreatedAt:      f.now().UTC(),
	}

	for _, sink := range f.sinks {
		if err := sink.RenderForecast(ctx, rep); err != nil {
			f.logger.Warn("sink failed to render forecast", slog.String("forecast_id", rep.ID), slog.Any("error", err))
		}
	}
	return rep, nil
}

// Series returns the requested fields between from and to and renders them.
func (f *Forecaster) Series(ctx context.Context, fields []models.Field, from, to time.Time) (models.SeriesView, error) {
	if len(fields) == 0 {
		return models.SeriesView{}, invalidf("at least one field is required")
	}
	if to.Before(from) {
		return models.SeriesView{}, invalidf("range end %s precedes start %s", to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	tl, err := f.loadTimeline(ctx)
	if err != nil {
		return models.SeriesView{}, err
	}
	for _, field := range fields {
		if !tl.Has(field) {
			return models.SeriesView{}, &MissingFieldError{Field: field.Key(), Where: "timeline"}
		}
	}
	view, err := tl.View(fields, from, to)
	if err != nil {
		return models.SeriesView{}, err
	}
	for _, sink := range f.sinks {
		if err := sink.RenderSeries(ctx, view); err != nil {
			f.logger.Warn("sink failed to render series", slog.Any("error", err))
		}
	}
	return view, nil
}

// Autocorrelation returns lagged autocorrelation coefficients for one field.
func (f *Forecaster) Autocorrelation(ctx context.Context, field models.Field, maxLag int) (map[int]float64, error) {
	if maxLag <= 0 {
		return nil, invalidf("max lag must be positive, got %d", maxLag)
	}
	tl, err := f.loadTimeline(ctx)
	if err != nil {
		return nil, err
	}
	if !tl.Has(field) {
		return nil, &MissingFieldError{Field: field.Key(), Where: "timeline"}
	}
	return dataset.Autocorrelation(tl, field, maxLag)
}

func (f *Forecaster) loadTimeline(ctx context.Context) (*dataset.Timeline, error) {
	if f.source == nil {
		return nil, fmt.Errorf("data source not configured")
	}
	vacc, err := f.source.Vaccinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vaccinations: %w", err)
	}
	cases, err := f.source.CaseGrowth(ctx)
	if err != nil {
		return nil, fmt.Errorf("load case growth: %w", err)
	}
	tests, err := f.source.Tests(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tests: %w", err)
	}
	tl, err := dataset.NewTimeline(vacc, cases, tests)
	if err != nil {
		return nil, fmt.Errorf("align domains: %w", err)
	}
	if tl.Len() == 0 {
		return nil, &InsufficientHistoryError{Length: 0}
	}
	return tl, nil
}
