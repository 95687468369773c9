package commentary

import "github.com/prometheus/client_golang/prometheus"

var (
	generationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chesscomm",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by final device and outcome",
		},
		[]string{"device", "outcome"},
	)

	cpuFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chesscomm",
			Subsystem: "generation",
			Name:      "cpu_fallback_total",
			Help:      "Generations retried on CPU after a degenerate sampling failure",
		},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chesscomm",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time of a full generation including model load",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"device", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(generationTotal, cpuFallbackTotal, generationDuration)
}
