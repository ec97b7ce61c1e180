package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firmdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firmdesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	membershipOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firmdesk_membership_operations_total",
			Help: "Membership lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// recordOperation tracks one membership operation outcome.
func recordOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	membershipOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		method := c.Request().Method
		path := c.Path()
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
