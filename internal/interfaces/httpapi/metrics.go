package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "chainnotes"

// Metrics owns a private registry so tests can build servers side by side.
// It also implements application.Observer.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	snapshotRefreshes prometheus.Counter
	snapshotTxs       prometheus.Histogram
	persistFailures   prometheus.Counter
	upstreamFailures  *prometheus.CounterVec
	textsStored       prometheus.Counter
	orphanedContent   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"route"}),
		snapshotRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_refreshes_total",
			Help:      "transaction snapshots written",
		}),
		snapshotTxs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_transactions",
			Help:      "transactions per written snapshot",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_persist_failures_total",
			Help:      "snapshot writes that failed after a successful fetch",
		}),
		upstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_failures_total",
			Help:      "failed calls to external dependencies",
		}, []string{"source"}),
		textsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "texts_stored_total",
			Help:      "texts stored with a label",
		}),
		orphanedContent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orphaned_content_total",
			Help:      "texts stored whose label mapping could not be saved",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnSnapshotRefreshed(transactions int) {
	m.snapshotRefreshes.Inc()
	m.snapshotTxs.Observe(float64(transactions))
}

func (m *Metrics) OnSnapshotPersistFailed() {
	m.persistFailures.Inc()
}

func (m *Metrics) OnTextStored() {
	m.textsStored.Inc()
}

func (m *Metrics) OnOrphanedContent() {
	m.orphanedContent.Inc()
}

func (m *Metrics) OnUpstreamFailure(source string) {
	m.upstreamFailures.WithLabelValues(source).Inc()
}

// Instrument is a mux middleware; it labels by route template to keep cardinality bounded.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
