package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failures caused by dependencies or internal faults.
	OutcomeError = "error"
	// OutcomeRejected labels forecasts refused because the request or data cannot support them.
	OutcomeRejected = "rejected"

	// SourceCSV labels loads from local files.
	SourceCSV = "csv"
	// SourceHTTP labels loads from the remote data API.
	SourceHTTP = "http"
)

var (
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casecast",
			Name:      "forecasts_total",
			Help:      "Total number of forecasts handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	forecastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casecast",
			Name:      "forecast_seconds",
			Help:      "Forecast latency in seconds, including data loading and model fitting.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	selectedFeatures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "casecast",
			Name:      "selected_features",
			Help:      "Number of features chosen by the most recent successful forecast.",
		},
	)

	sourceLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casecast",
			Name:      "source_loads_total",
			Help:      "Data source loads partitioned by source kind and outcome.",
		},
		[]string{"source", "outcome"},
	)
)

// Register attaches casecast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		forecastsTotal,
		forecastDurationSeconds,
		selectedFeatures,
		sourceLoadsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveForecast records a forecast duration and outcome label.
func ObserveForecast(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError && label != OutcomeRejected {
		label = OutcomeSuccess
	}
	forecastsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.Observe(duration.Seconds())
}

// SetSelectedFeatures publishes the size of the latest feature set.
func SetSelectedFeatures(n int) {
	selectedFeatures.Set(float64(n))
}

// ObserveSourceLoad counts one domain or correlation load.
func ObserveSourceLoad(source, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	sourceLoadsTotal.WithLabelValues(source, outcome).Inc()
}
