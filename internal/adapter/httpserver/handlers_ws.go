package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser pages on the LAN connect from arbitrary origins
	},
	EnableCompression: false,
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.hub.Ready() {
		metrics.WebSocketConnectionsRejected.WithLabelValues("stopped").Inc()
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server shutting down"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.DebugContext(ctx, "WebSocket upgrade failed", "remote_addr", c.Request().RemoteAddr, "error", err)
		metrics.RelayConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		return nil
	}

	// Serve blocks for the lifetime of the connection; keep the request values, not its cancellation.
	if err := s.hub.Serve(context.WithoutCancel(ctx), conn, remoteHost(c.Request().RemoteAddr)); err != nil {
		slog.InfoContext(ctx, "Connection refused by relay", "error", err)
	}
	return nil
}

// remoteHost strips the port from a RemoteAddr.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
