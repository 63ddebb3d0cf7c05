package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inference-sim/hostsim/sim"
)

// DefaultResponseTimeBuckets span the thresholds the built-in levels grade against.
var DefaultResponseTimeBuckets = []float64{0.5, 1, 2, 3, 5, 7.5, 10, 15, 20, 30, 60}

// StateSource is the part of the simulator the gauges sample.
type StateSource interface {
	Clock() time.Duration
	InFlight() int
	Points() sim.UpgradePoints
	Progress() float64
}

// Recorder turns tick outcomes into Prometheus series.
type Recorder struct {
	namespace string
	subsystem string
	buckets   []float64
	enabled   bool
	registry  *prometheus.Registry

	outcomes     *prometheus.CounterVec
	drops        *prometheus.CounterVec
	grades       *prometheus.CounterVec
	responseTime prometheus.Histogram

	inFlight        prometheus.Gauge
	pointsRemaining prometheus.Gauge
	clockSeconds    prometheus.Gauge
	progress        prometheus.Gauge
}

// NewRecorder creates a Recorder. Without WithPrometheusRegistry it registers
// on a fresh registry, so several recorders can coexist in one process.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "hostsim",
		subsystem: "sim",
		buckets:   DefaultResponseTimeBuckets,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	r.initializeMetrics()
	return r
}

func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)

	r.outcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "outcomes_total",
		Help:      "Tick outcomes by kind",
	}, []string{"kind"})

	r.drops = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "dropped_requests_total",
		Help:      "Dropped requests by reason",
	}, []string{"reason"})

	r.grades = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "levels_graded_total",
		Help:      "Graded level attempts by result",
	}, []string{"result"})

	r.responseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "response_time_seconds",
		Help:      "Age of requests at completion",
		Buckets:   r.buckets,
	})

	r.inFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "requests_in_flight",
		Help:      "Requests spawned but not yet handled or dropped",
	})

	r.pointsRemaining = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "upgrade_points_remaining",
		Help:      "Upgrade points left to spend",
	})

	r.clockSeconds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "clock_seconds",
		Help:      "Simulated time since the level was reset",
	})

	r.progress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "level_progress_ratio",
		Help:      "Fraction of the load scenario elapsed",
	})
}

// Observe records a batch of outcomes returned by Tick.
func (r *Recorder) Observe(outcomes []sim.Outcome) {
	if !r.enabled {
		return
	}
	for _, o := range outcomes {
		r.outcomes.WithLabelValues(string(o.Kind)).Inc()
		switch o.Kind {
		case sim.OutcomeHandled:
			r.responseTime.Observe(o.Age)
		case sim.OutcomeDropped:
			r.drops.WithLabelValues(string(o.Reason)).Inc()
		case sim.OutcomeGraded:
			result := "failed"
			if o.Results != nil && o.Results.Passed {
				result = "passed"
			}
			r.grades.WithLabelValues(result).Inc()
		}
	}
}

// Sample updates the gauges from the current simulator state.
func (r *Recorder) Sample(src StateSource) {
	if !r.enabled {
		return
	}
	r.inFlight.Set(float64(src.InFlight()))
	r.pointsRemaining.Set(float64(src.Points().Remaining()))
	r.clockSeconds.Set(src.Clock().Seconds())
	r.progress.Set(src.Progress())
}

// Registry returns the registry the recorder's metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
