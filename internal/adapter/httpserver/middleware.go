package httpserver

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/lanrelay/internal/metrics"
	"github.com/pscheid92/lanrelay/internal/platform/correlation"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// httpMetricsMiddleware records request metrics. It skips /metrics, /health/* and WebSocket
// upgrades, whose handlers run for the whole session.
func httpMetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Path()
		if path == "/metrics" || strings.HasPrefix(path, "/health/") || isWebSocketRoute(path) {
			return next(c)
		}

		metrics.HTTPInFlightRequests.Inc()
		defer metrics.HTTPInFlightRequests.Dec()

		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			status := strconv.Itoa(c.Response().Status)
			metrics.HTTPRequestDuration.WithLabelValues(c.Request().Method, path, status).Observe(v)
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
		}))

		err := next(c)
		timer.ObserveDuration()
		return err
	}
}

func isWebSocketRoute(path string) bool {
	return path == "/" || path == "/ws"
}
