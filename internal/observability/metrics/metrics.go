package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics captures per-route request counts and latencies.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirage_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mirage_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	prometheus.MustRegister(m.requests, m.duration)
	return m
}

// GinMiddleware records request metrics after the handler chain completes.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// GenerationMetrics tracks generation request outcomes per mode.
type GenerationMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewGenerationMetrics() *GenerationMetrics {
	m := &GenerationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirage_generation_outcomes_total",
			Help: "Generation outcomes by mode and result.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mirage_generation_duration_seconds",
			Help:    "End-to-end generation latency including provider polling.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		}, []string{"mode"}),
	}
	prometheus.MustRegister(m.outcomes, m.duration)
	return m
}

func (m *GenerationMetrics) Observe(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(mode, outcome).Inc()
	m.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
