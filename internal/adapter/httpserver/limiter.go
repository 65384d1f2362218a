package httpserver

import (
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

// connectionLimiter caps concurrent connections per instance. A max of zero disables the cap.
type connectionLimiter struct {
	current atomic.Int64
	max     int64
}

func newConnectionLimiter(max int64) *connectionLimiter {
	return &connectionLimiter{max: max}
}

// acquire takes a slot and reports whether one was free.
func (l *connectionLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if l.max > 0 && current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *connectionLimiter) release() {
	l.current.Add(-1)
}

func (l *connectionLimiter) inUse() int64 {
	return l.current.Load()
}

// limitConnections holds a slot for as long as the wrapped handler runs. WebSocket handlers run
// for the lifetime of the connection, so the slot tracks the connection.
func limitConnections(l *connectionLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.acquire() {
				metrics.WebSocketConnectionsRejected.WithLabelValues("global_limit").Inc()
				metrics.RelayConnectionsTotal.WithLabelValues("rejected_capacity").Inc()
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"error": domain.ErrCapacityReached.Error(),
				})
			}
			defer l.release()
			return next(c)
		}
	}
}
