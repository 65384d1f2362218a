package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/lanrelay/internal/platform/config"
	"github.com/pscheid92/lanrelay/internal/relay"
)

// relayHub is the part of relay.Hub the front ends need.
type relayHub interface {
	Serve(ctx context.Context, conn relay.Conn, origin string) error
	Ready() bool
	Count() int
}

// Server is the HTTP side of the relay. One echo instance backs both the plaintext and the TLS
// listener, so both front ends feed the same hub through the same routes.
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       relayHub
	limiter   *connectionLimiter
	startTime time.Time
}

func NewServer(cfg *config.Config, hub relayHub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       hub,
		limiter:   newConnectionLimiter(int64(cfg.MaxConnections)),
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start serves plaintext HTTP and WebSocket on PORT. It blocks until Shutdown.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + strconv.Itoa(s.config.Port)); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// StartTLS serves HTTPS and secure WebSocket on TLS_PORT. It blocks until Shutdown.
func (s *Server) StartTLS() error {
	slog.Info("Starting TLS server", "port", s.config.TLSPort, "cert_file", s.config.TLSCertFile)
	if err := s.echo.StartTLS(":"+strconv.Itoa(s.config.TLSPort), s.config.TLSCertFile, s.config.TLSKeyFile); err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	return nil
}

// Shutdown stops both listeners. Upgraded connections are not tracked by net/http; the hub
// closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}
