package mlp

import "errors"

var (
	// ErrEmptyTraining is returned when Fit receives no samples.
	ErrEmptyTraining = errors.New("mlp: empty training set")
	// ErrNoFeatures is returned when samples have zero columns.
	ErrNoFeatures = errors.New("mlp: samples have no features")
	// ErrSingleClass is returned when fewer than two distinct labels are present.
	ErrSingleClass = errors.New("mlp: need at least two distinct classes")
	// ErrShapeMismatch is returned for ragged rows or label/sample count mismatch.
	ErrShapeMismatch = errors.New("mlp: shape mismatch")
	// ErrNonFinite is returned when inputs contain NaN or Inf.
	ErrNonFinite = errors.New("mlp: non-finite input")
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("mlp: classifier not fitted")
)
