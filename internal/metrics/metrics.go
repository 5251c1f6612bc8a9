package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockflow_http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "stockflow_http_request_duration_seconds", Help: "HTTP request duration", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	SalesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockflow_sales_completed_total",
		Help: "Sales persisted by the sale workers",
	})
	SalesFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockflow_sales_failed_total",
		Help: "Sales whose persistence failed and whose stock was released",
	})
	RevenueTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockflow_revenue_total",
		Help: "Revenue of persisted sales in the store currency",
	})
	CheckoutRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockflow_checkout_rejected_total",
		Help: "Checkouts rejected before a sale was queued",
	}, []string{"reason"})
	SaleQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stockflow_sale_queue_depth",
		Help: "Sales waiting for a worker",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration,
		SalesCompletedTotal, SalesFailedTotal, RevenueTotal,
		CheckoutRejectedTotal, SaleQueueDepth,
	)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
