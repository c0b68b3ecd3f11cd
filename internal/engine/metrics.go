package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "radioplayer"

	loadResultReady       = "ready"
	loadResultNotPlayable = "not_playable"
	loadResultError       = "error"

	correctionSession = "session"
	correctionRate    = "rate"
)

type metrics struct {
	loads             *prometheus.CounterVec
	stalls            prometheus.Counter
	stallRetries      prometheus.Counter
	failureRetries    prometheus.Counter
	healthCorrections *prometheus.CounterVec
	playing           prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &metrics{
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_loads_total",
			Help:      "Stream load outcomes by result.",
		}, []string{"result"}),
		stalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stalls_total",
			Help:      "Buffer underruns during playback.",
		}),
		stallRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stall_retries_total",
			Help:      "Play reissued on an existing player after a stall.",
		}),
		failureRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failure_retries_total",
			Help:      "Full reloads after a load or player failure.",
		}),
		healthCorrections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "health_corrections_total",
			Help:      "Corrections applied by the periodic health check.",
		}, []string{"kind"}),
		playing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "playing",
			Help:      "1 while audio is playing.",
		}),
	}
}
