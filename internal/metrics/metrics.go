package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics holds the per-call metrics of an API client
type ClientMetrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
}

// NewClientMetrics creates client metrics and registers them on reg.
// Collectors already registered on reg are reused.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listctl_client_requests_total",
			Help: "Total number of calls to the list API",
		},
		[]string{"endpoint", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listctl_client_request_duration_seconds",
			Help:    "List API call duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return &ClientMetrics{
		RequestsTotal:          requests,
		RequestDurationSeconds: duration,
	}, nil
}

// Observe records one completed call
func (c *ClientMetrics) Observe(endpoint, outcome string, d time.Duration) {
	c.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	c.RequestDurationSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Metrics holds all Prometheus metrics of a listctl process
type Metrics struct {
	Client *ClientMetrics

	// Fake API server
	ServerRequestsTotal          *prometheus.CounterVec
	ServerRequestDurationSeconds *prometheus.HistogramVec
	ServerErrorsTotal            *prometheus.CounterVec

	// Exporter
	SegmentMembers       *prometheus.GaugeVec
	SegmentEngagement    *prometheus.GaugeVec
	ListMembers          *prometheus.GaugeVec
	ExporterPollsTotal   *prometheus.CounterVec
	ExporterLastPollTime prometheus.Gauge

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	client, err := NewClientMetrics(reg)
	if err != nil {
		// fresh registry, cannot collide
		panic(err)
	}

	m := &Metrics{
		Client: client,

		ServerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listctl_fake_requests_total",
				Help: "Total number of requests served by the fake API",
			},
			[]string{"method", "path", "status"},
		),
		ServerRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listctl_fake_request_duration_seconds",
				Help:    "Fake API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
		ServerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listctl_fake_errors_total",
				Help: "Total number of fake API error responses",
			},
			[]string{"error_type"},
		),

		SegmentMembers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "listctl_segment_members",
				Help: "Number of contacts matching a segment",
			},
			[]string{"list_id", "segment_id", "segment"},
		),
		SegmentEngagement: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "listctl_segment_engagement",
				Help: "Engagement score reported for a segment",
			},
			[]string{"list_id", "segment_id", "segment"},
		),
		ListMembers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "listctl_list_members",
				Help: "Number of contacts in a list",
			},
			[]string{"list_id"},
		),
		ExporterPollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listctl_exporter_polls_total",
				Help: "Total number of exporter polls by result",
			},
			[]string{"result"},
		),
		ExporterLastPollTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listctl_exporter_last_poll_timestamp_seconds",
				Help: "Unix time of the last completed exporter poll",
			},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listctl_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "listctl_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.ServerRequestsTotal,
		m.ServerRequestDurationSeconds,
		m.ServerErrorsTotal,
		m.SegmentMembers,
		m.SegmentEngagement,
		m.ListMembers,
		m.ExporterPollsTotal,
		m.ExporterLastPollTime,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
