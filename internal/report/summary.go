package report

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/epicast/casecast/internal/models"
)

const daysPerWeek = 7

// Summarize computes accuracy figures for a predicted sequence against actual values.
// MAPE skips days whose actual value is zero.
func Summarize(predicted, actual []float64) models.ForecastSummary {
	n := len(predicted)
	if len(actual) < n {
		n = len(actual)
	}
	if n == 0 {
		return models.ForecastSummary{}
	}

	absErr := make([]float64, n)
	pct := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		absErr[i] = math.Abs(predicted[i] - actual[i])
		if actual[i] != 0 {
			pct = append(pct, 100*absErr[i]/math.Abs(actual[i]))
		}
	}

	summary := models.ForecastSummary{
		MAE:             stat.Mean(absErr, nil),
		WeeklyPredicted: WeeklyAverages(predicted[:n]),
		WeeklyActual:    WeeklyAverages(actual[:n]),
	}
	if len(pct) > 0 {
		summary.MAPE = stat.Mean(pct, nil)
	}
	return summary
}

// WeeklyAverages averages consecutive seven-day blocks; a trailing partial week is averaged
// over the days it has.
func WeeklyAverages(values []float64) []float64 {
	out := make([]float64, 0, (len(values)+daysPerWeek-1)/daysPerWeek)
	for start := 0; start < len(values); start += daysPerWeek {
		end := start + daysPerWeek
		if end > len(values) {
			end = len(values)
		}
		out = append(out, floats.Sum(values[start:end])/float64(end-start))
	}
	return out
}
