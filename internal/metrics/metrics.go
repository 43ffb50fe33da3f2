// Package metrics exposes prometheus collectors for navigation decisions,
// store activity and upstream API calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"invoicer/internal/routing"
)

const (
	namespace = "invoicer"

	LabelSuccess = "success"
	LabelError   = "error"
)

// Metrics holds the service's collectors.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	Resolutions      *prometheus.CounterVec
	SessionChecks    *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Count of navigation decisions by stage, action and reason",
		}, []string{"stage", "action", "reason"}),

		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Count of default tenant resolutions by outcome",
		}, []string{"outcome"}),

		SessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "checks_total",
			Help:      "Count of session checks by result",
		}, []string{"result"}),

		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Count of upstream API requests by operation, status and result",
		}, []string{"op", "status", "result"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Histogram of upstream API request durations",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 4, 8),
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Decisions,
		m.Resolutions,
		m.SessionChecks,
		m.UpstreamRequests,
		m.UpstreamDuration,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.PrometheusCollectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveDecision(stage string, d routing.Decision) {
	m.Decisions.WithLabelValues(stage, d.Action.String(), string(d.Reason)).Inc()
}

func (m *Metrics) ObserveResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSessionCheck(authenticated bool) {
	result := "unauthenticated"
	if authenticated {
		result = "authenticated"
	}
	m.SessionChecks.WithLabelValues(result).Inc()
}

// ObserveUpstream matches api.Observer.
func (m *Metrics) ObserveUpstream(op string, status int, elapsed time.Duration, err error) {
	result := LabelSuccess
	if err != nil {
		result = LabelError
	}
	m.UpstreamRequests.WithLabelValues(op, strconv.Itoa(status), result).Inc()
	m.UpstreamDuration.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// WorkspacesGauge reports the number of live workspaces through count.
func WorkspacesGauge(count func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "workspace",
		Name:      "live",
		Help:      "Number of workspaces held in memory",
	}, func() float64 { return float64(count()) })
}
