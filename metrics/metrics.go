/*
Package metrics exposes Prometheus counters for the sale ledger and the HTTP
layer.

Collectors are registered on an injected registry rather than the global
default, so every test (and every server instance) gets its own set.

LEDGER:
  sales_committed_total{payment_type}   New sales committed
  sales_revenue_total{payment_type}     Revenue of committed sales
  sales_replayed_total                  Requests answered from the idempotency index
  sale_validation_failures_total        Requests rejected before any mutation
  stock_decrement_misses_total          Line items whose product did not exist
  products_low_stock                    Active products at or below critical stock

HTTP:
  http_requests_total{method,route,status}
  http_request_duration_seconds{method,route,status}
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	salesCommitted     *prometheus.CounterVec
	salesRevenue       *prometheus.CounterVec
	salesReplayed      prometheus.Counter
	validationFailures prometheus.Counter
	decrementMisses    prometheus.Counter
	lowStock           prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		salesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_committed_total",
			Help: "Total number of sales committed to the ledger",
		}, []string{"payment_type"}),
		salesRevenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_revenue_total",
			Help: "Total revenue of committed sales",
		}, []string{"payment_type"}),
		salesReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sales_replayed_total",
			Help: "Total number of create-sale requests answered from the idempotency index",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sale_validation_failures_total",
			Help: "Total number of create-sale requests rejected by validation",
		}),
		decrementMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_decrement_misses_total",
			Help: "Total number of sale lines referencing a product missing from the catalog",
		}),
		lowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "products_low_stock",
			Help: "Number of active products at or below their critical stock level",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		r.salesCommitted,
		r.salesRevenue,
		r.salesReplayed,
		r.validationFailures,
		r.decrementMisses,
		r.lowStock,
		r.requests,
		r.requestDuration,
	)
	return r
}

// NewDefault creates a Recorder on a fresh registry that also carries the
// Go runtime and process collectors.
func NewDefault() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (r *Recorder) SaleCommitted(paymentType string, revenue float64) {
	if r == nil {
		return
	}
	r.salesCommitted.WithLabelValues(paymentType).Inc()
	if revenue > 0 {
		r.salesRevenue.WithLabelValues(paymentType).Add(revenue)
	}
}

func (r *Recorder) SaleReplayed() {
	if r == nil {
		return
	}
	r.salesReplayed.Inc()
}

func (r *Recorder) ValidationFailed() {
	if r == nil {
		return
	}
	r.validationFailures.Inc()
}

func (r *Recorder) DecrementMissed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.decrementMisses.Add(float64(n))
}

// LowStock sets the current count of low-stock products.
func (r *Recorder) LowStock(n int) {
	if r == nil {
		return
	}
	r.lowStock.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(ww.Status())
		r.requests.WithLabelValues(req.Method, route, status).Inc()
		r.requestDuration.WithLabelValues(req.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
