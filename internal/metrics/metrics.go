package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "tokenmeta"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics records fetch activity. All methods are safe on a nil receiver so
// callers embedding the fetcher as a library may run without instrumentation.
type Metrics struct {
	aggregateCalls    *prometheus.CounterVec
	aggregateDuration *prometheus.HistogramVec
	tokensFetched     *prometheus.CounterVec
	decodeFallbacks   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		aggregateCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "aggregate",
			Name:      "calls_total",
			Help:      "Aggregate calls by network and status",
		}, []string{"network", "status"}),
		aggregateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "aggregate",
			Name:      "duration_seconds",
			Help:      "Aggregate call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"network"}),
		tokensFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_fetched_total",
			Help:      "Tokens resolved by successful fetches",
		}, []string{"network"}),
		decodeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_fallbacks_total",
			Help:      "Fields resolved to their default value because every decode strategy failed",
		}, []string{"network", "field"}),
	}

	collectors := []prometheus.Collector{
		m.aggregateCalls,
		m.aggregateDuration,
		m.tokensFetched,
		m.decodeFallbacks,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveAggregate records one aggregate call.
func (m *Metrics) ObserveAggregate(network string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.aggregateCalls.WithLabelValues(network, status).Inc()
	m.aggregateDuration.WithLabelValues(network).Observe(d.Seconds())
}

// AddTokens records n resolved tokens.
func (m *Metrics) AddTokens(network string, n int) {
	if m == nil {
		return
	}
	m.tokensFetched.WithLabelValues(network).Add(float64(n))
}

// IncFallback records one field that fell back to its default.
func (m *Metrics) IncFallback(network, field string) {
	if m == nil {
		return
	}
	m.decodeFallbacks.WithLabelValues(network, field).Inc()
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
