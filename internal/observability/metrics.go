package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	documentsPosted     *prometheus.CounterVec
	sequenceReserved    *prometheus.CounterVec
	inventoryRejections *prometheus.CounterVec
	inventoryMovements  *prometheus.CounterVec
	orderTransitions    *prometheus.CounterVec
	versionConflicts    *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
}

// NewMetrics creates the registry and registers the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "books_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		documentsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_documents_posted_total",
			Help: "Documents posted by document type.",
		}, []string{"type"}),
		sequenceReserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_sequence_reservations_total",
			Help: "Sequence numbers reserved by key, including ones later rolled back.",
		}, []string{"key"}),
		inventoryRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_inventory_rejections_total",
			Help: "Inventory postings rejected by error code.",
		}, []string{"code"}),
		inventoryMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_inventory_movements_total",
			Help: "Inventory movements written by movement type.",
		}, []string{"type"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_order_transitions_total",
			Help: "Order lifecycle transitions by action.",
		}, []string{"action"}),
		versionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_concurrent_update_conflicts_total",
			Help: "Master-data updates rejected for a stale row_version.",
		}, []string{"entity"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "books_cache_lookups_total",
			Help: "Master-data cache lookups by entity and result.",
		}, []string{"entity", "result"}),
	}
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.documentsPosted,
		m.sequenceReserved,
		m.inventoryRejections,
		m.inventoryMovements,
		m.orderTransitions,
		m.versionConflicts,
		m.cacheLookups,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// DocumentPosted counts a successful posting.
func (m *Metrics) DocumentPosted(docType string) {
	if m == nil {
		return
	}
	m.documentsPosted.WithLabelValues(docType).Inc()
}

// SequenceReserved counts a reserved number.
func (m *Metrics) SequenceReserved(key string) {
	if m == nil {
		return
	}
	m.sequenceReserved.WithLabelValues(key).Inc()
}

// InventoryRejected counts a rejected posting by its error code.
func (m *Metrics) InventoryRejected(code string) {
	if m == nil || code == "" {
		return
	}
	m.inventoryRejections.WithLabelValues(code).Inc()
}

// InventoryMovements counts n movements written for movementType.
func (m *Metrics) InventoryMovements(movementType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.inventoryMovements.WithLabelValues(movementType).Add(float64(n))
}

// OrderTransition counts an applied order action.
func (m *Metrics) OrderTransition(action string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(action).Inc()
}

// VersionConflict counts a stale row_version rejection.
func (m *Metrics) VersionConflict(entity string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(entity).Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(entity string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(entity, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
