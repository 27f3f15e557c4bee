package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/epicast/casecast/internal/models"
)

// minPairs is the fewest complete observations needed for a coefficient.
const minPairs = 3

// Correlate derives the Pearson correlation matrix for every loaded catalog field using
// pairwise-complete observations. Undefined coefficients (constant or sparse series) are 0.
func Correlate(t *Timeline) models.CorrelationMatrix {
	fields := make([]models.Field, 0)
	for _, f := range models.AllFields() {
		if t.Has(f) {
			fields = append(fields, f)
		}
	}

	m := models.CorrelationMatrix{}
	for i, a := range fields {
		m.Set(a, a, 1)
		colA := t.values[a.Key()]
		for _, b := range fields[i+1:] {
			m.Set(a, b, pearson(colA, t.values[b.Key()]))
		}
	}
	return m
}

// Autocorrelation returns the lag-k Pearson autocorrelation of f for k in [1, maxLag].
func Autocorrelation(t *Timeline, f models.Field, maxLag int) (map[int]float64, error) {
	col, ok := t.values[f.Key()]
	if !ok {
		return nil, fmt.Errorf("field %s not loaded", f)
	}
	if maxLag <= 0 {
		return nil, fmt.Errorf("max lag must be positive, got %d", maxLag)
	}
	if maxLag >= len(col) {
		maxLag = len(col) - 1
	}
	out := make(map[int]float64, maxLag)
	for lag := 1; lag <= maxLag; lag++ {
		out[lag] = pearson(col[:len(col)-lag], col[lag:])
	}
	return out, nil
}

func pearson(a, b []float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for i := range a {
		if i >= len(b) || math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < minPairs {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}
