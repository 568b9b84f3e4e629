// Package metrics exposes Prometheus instruments for the event server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Merge kinds.
const (
	KindCreate      = "create"
	KindFlat        = "flat"
	KindIncremental = "incremental"
)

// Metrics groups the server instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	merges       *prometheus.CounterVec
	conflicts    prometheus.Counter
	rejected     *prometheus.CounterVec
	payloadBytes *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventkeeper",
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC requests by method and status code",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventkeeper",
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventkeeper",
			Name:      "merges_total",
			Help:      "Stored event writes by merge kind",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventkeeper",
			Name:      "conflicts_total",
			Help:      "Writes rejected because the stored event diverged",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventkeeper",
			Name:      "rejected_requests_total",
			Help:      "Requests rejected before merge by reason",
		}, []string{"reason"}),
		payloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventkeeper",
			Name:      "payload_bytes",
			Help:      "Encoded size of incoming save payloads",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"kind"}),
	}
	reg.MustRegister(m.requests, m.duration, m.merges, m.conflicts, m.rejected, m.payloadBytes)
	return m
}

// ObserveRequest records one handled RPC.
func (m *Metrics) ObserveRequest(method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(took.Seconds())
}

// Merged records a stored write of the given kind.
func (m *Metrics) Merged(kind string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(kind).Inc()
}

// Conflict records a divergence rejection.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// Rejected records a request refused before merge.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Payload records the encoded size of an incoming payload.
func (m *Metrics) Payload(kind string, size int) {
	if m == nil {
		return
	}
	m.payloadBytes.WithLabelValues(kind).Observe(float64(size))
}

// NewServer returns an HTTP server exposing /metrics for g and /healthz.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
