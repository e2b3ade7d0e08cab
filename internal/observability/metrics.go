package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whetherapp/whether-backend/internal/weather"
)

const namespace = "whether"

// Metrics holds the Prometheus collectors for the HTTP API and the stores behind it.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // labels: route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: route
	VotesRecorded       *prometheus.CounterVec   // labels: category
	VibesRecorded       prometheus.Counter
	UpstreamErrors      *prometheus.CounterVec // labels: operation

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsForTesting registers with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	reg := prometheus.NewRegistry()
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and response status.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, dominated by spreadsheet round trips.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		VotesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes written to the tally row, by category.",
		}, []string{"category"}),
		VibesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vibes_recorded_total",
			Help:      "Vibes appended to the log.",
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Backing store failures by operation.",
		}, []string{"operation"}),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.VotesRecorded,
		m.VibesRecorded,
		m.UpstreamErrors,
	)

	// Pre-populate category series so dashboards show zeros before the first vote.
	for _, c := range weather.Categories {
		m.VotesRecorded.WithLabelValues(c.String())
	}

	return m
}

// Handler serves the registry this Metrics was registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) VoteRecorded(category weather.Category) {
	m.VotesRecorded.WithLabelValues(category.String()).Inc()
}

func (m *Metrics) VibeRecorded() {
	m.VibesRecorded.Inc()
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
