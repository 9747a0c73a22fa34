package manager

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	installsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medmodeld",
			Subsystem: "manager",
			Name:      "installs_total",
			Help:      "Install attempts by result",
		},
		[]string{"result"},
	)

	installPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medmodeld",
			Subsystem: "manager",
			Name:      "install_phase_duration_seconds",
			Help:      "Duration of install phases in seconds",
			Buckets:   []float64{1, 5, 15, 60, 180, 600, 1800},
		},
		[]string{"phase", "result"},
	)

	inferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medmodeld",
			Subsystem: "gateway",
			Name:      "inference_requests_total",
			Help:      "Inference requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medmodeld",
			Subsystem: "gateway",
			Name:      "inference_duration_seconds",
			Help:      "Wall-clock duration of inference calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	runtimeReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medmodeld",
			Subsystem: "runtime",
			Name:      "reachable",
			Help:      "1 when the last runtime contact succeeded",
		},
	)
)

func init() {
	prometheus.MustRegister(installsTotal, installPhaseDuration, inferenceTotal, inferenceDuration, runtimeReachable)
}

func setRuntimeReachable(ok bool) {
	if ok {
		runtimeReachable.Set(1)
		return
	}
	runtimeReachable.Set(0)
}

// resultLabel maps an error to a low-cardinality metrics label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		return c.Code()
	}
	return "error"
}
