// Package metrics: метрики Prometheus: HTTP-запросы и поток изменений заявок.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "Current number of HTTP requests being processed",
		},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_realtime_events_total",
			Help: "Change notifications received from the datastore by type",
		},
		[]string{"type"},
	)

	staleFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_stale_fetches_total",
			Help: "Fetch responses discarded because a newer one was already applied",
		},
	)

	registerOnce sync.Once
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal)
		prometheus.MustRegister(httpRequestDuration)
		prometheus.MustRegister(httpRequestsInProgress)
		prometheus.MustRegister(realtimeEvents)
		prometheus.MustRegister(staleFetches)
	})
}

func RealtimeEvent(changeType string) {
	realtimeEvents.WithLabelValues(changeType).Inc()
}

func StaleFetch() {
	staleFetches.Inc()
}

// Middleware считает запросы по шаблону маршрута gin (":id" вместо значения).
// Поток /api/v1/events долгоживущий, поэтому попадает только в in-progress.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpRequestsInProgress.Inc()
		defer httpRequestsInProgress.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
