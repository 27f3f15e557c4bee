package models

import "time"

// FeatureSet holds the selected fields and their aligned series in selection order.
type FeatureSet struct {
	Fields []Field
	Series [][]float64
}

// Len returns the number of selected fields.
func (f FeatureSet) Len() int { return len(f.Fields) }

// Range is a half-open index interval [Start, End) over the shared date axis.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Shift moves the range by delta indices.
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

// Overlaps reports whether the two ranges share an index.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Window pairs train and test ranges over the target series. Features are read Lag
// entries earlier than the targets they predict.
type Window struct {
	Train Range
	Test  Range
	Lag   int
}

// TrainFeatures is the feature range aligned with Train.
func (w Window) TrainFeatures() Range { return w.Train.Shift(-w.Lag) }

// TestFeatures is the feature range aligned with Test.
func (w Window) TestFeatures() Range { return w.Test.Shift(-w.Lag) }

// ForecastRequest is the call surface of one prediction run.
type ForecastRequest struct {
	StartDate     time.Time
	DaysToPredict int
}

// ForecastSummary aggregates accuracy figures over the test window.
type ForecastSummary struct {
	MAE             float64
	MAPE            float64
	WeeklyPredicted []float64
	WeeklyActual    []float64
}

// ForecastReport is the output of a forecast run handed to sinks.
type ForecastReport struct {
	ID             string
	StartDate      time.Time
	AnchorDate     time.Time
	SelectedFields []Field
	Window         Window
	Dates          []time.Time
	Predicted      []float64
	Actual         []float64
	TrainActual    []float64
	Summary        ForecastSummary
	CreatedAt      time.Time
}
