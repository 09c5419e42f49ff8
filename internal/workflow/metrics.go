package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vidpipe/internal/queue"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
	inFlight    prometheus.Gauge
}

// NewMetrics registers the workflow collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidpipe",
			Name:      "jobs_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"job_type", "status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vidpipe",
			Name:      "job_duration_seconds",
			Help:      "Wall time from claim to terminal state.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"job_type"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidpipe",
			Name:      "queue_depth",
			Help:      "Job ids waiting in the dispatch channel.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidpipe",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently executing.",
		}),
	}
}

func (m *Metrics) setQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) jobFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) observe(jobType queue.JobType, status queue.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(string(jobType), string(status)).Inc()
	m.jobDuration.WithLabelValues(string(jobType)).Observe(elapsed.Seconds())
}
