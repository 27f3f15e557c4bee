package mlp

import (
	"gonum.org/v1/gonum/stat"
)

// StandardScaler removes the per-column mean and scales to unit population variance.
// Constant columns are centred but left unscaled.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes column statistics from rows.
func (s *StandardScaler) Fit(rows [][]float64) {
	if len(rows) == 0 {
		s.Mean, s.Scale = nil, nil
		return
	}
	cols := len(rows[0])
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
}

// Transform applies the fitted statistics to a copy of rows.
func (s *StandardScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			if j >= len(s.Mean) {
				scaled[j] = v
				continue
			}
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out
}

// FitTransform fits on rows and returns them standardised.
func (s *StandardScaler) FitTransform(rows [][]float64) [][]float64 {
	s.Fit(rows)
	return s.Transform(rows)
}
