package engine

import (
	"fmt"

	"github.com/epicast/casecast/internal/mlp"
	"github.com/epicast/casecast/internal/models"
)

// Scaler standardises a set of row vectors using statistics fitted on those rows.
type Scaler interface {
	FitTransform(rows [][]float64) [][]float64
}

// Classifier learns a discrete label set and predicts labels for new rows.
type Classifier interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
}

// Predictor turns a feature set and window into a forecast sequence.
type Predictor struct {
	newScaler     func() Scaler
	newClassifier func() Classifier
}

// NewPredictor wires scaler and classifier factories. Nil factories use the standard scaler
// and the fixed MLP configuration.
func NewPredictor(newScaler func() Scaler, newClassifier func() Classifier) *Predictor {
	if newScaler == nil {
		newScaler = func() Scaler { return mlp.NewStandardScaler() }
	}
	if newClassifier == nil {
		newClassifier = func() Classifier { return mlp.NewClassifier(mlp.DefaultConfig()) }
	}
	return &Predictor{newScaler: newScaler, newClassifier: newClassifier}
}

// Predict fits a fresh classifier on the training window and labels the test window.
// Train and test vectors are standardised independently.
func (p *Predictor) Predict(features models.FeatureSet, target []float64, w models.Window) ([]float64, error) {
	if features.Len() == 0 {
		return nil, &FitError{Reason: "no features selected"}
	}
	n := len(target)
	for i, s := range features.Series {
		if len(s) != n {
			return nil, &FitError{Reason: fmt.Sprintf("feature %s has %d entries, target has %d", features.Fields[i], len(s), n)}
		}
	}
	trainIn, testIn := w.TrainFeatures(), w.TestFeatures()
	if trainIn.Start < 0 || w.Test.End > n || testIn.Start < 0 {
		return nil, &InsufficientHistoryError{Offset: n - trainIn.Start, Horizon: w.Lag, Length: n}
	}
	if w.Train.Len() == 0 {
		return nil, &FitError{Reason: "empty training window"}
	}

	testX := p.newScaler().FitTransform(vectors(features, testIn))
	trainX := p.newScaler().FitTransform(vectors(features, trainIn))
	trainY := append([]float64(nil), target[w.Train.Start:w.Train.End]...)

	clf := p.newClassifier()
	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, &FitError{Reason: "classifier", Err: err}
	}
	predicted, err := clf.Predict(testX)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(predicted) != w.Test.Len() {
		return nil, fmt.Errorf("predict: got %d labels for %d test dates", len(predicted), w.Test.Len())
	}
	return predicted, nil
}

// vectors transposes per-field series over r into per-date rows in field order.
func vectors(features models.FeatureSet, r models.Range) [][]float64 {
	rows := make([][]float64, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		row := make([]float64, features.Len())
		for j, s := range features.Series {
			row[j] = s[i]
		}
		rows = append(rows, row)
	}
	return rows
}
