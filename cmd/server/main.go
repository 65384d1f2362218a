package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/adapter/httpserver"
	"github.com/pscheid92/lanrelay/internal/discovery"
	"github.com/pscheid92/lanrelay/internal/metrics"
	"github.com/pscheid92/lanrelay/internal/platform/config"
	"github.com/pscheid92/lanrelay/internal/platform/logging"
	"github.com/pscheid92/lanrelay/internal/platform/version"
	"github.com/pscheid92/lanrelay/internal/relay"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func newBeacon(cfg *config.Config, clock clockwork.Clock) *discovery.Beacon {
	beaconCfg := discovery.Config{
		Port:     cfg.DiscoveryPort,
		Interval: cfg.DiscoveryInterval,
		Payload:  []byte(cfg.DiscoveryPayload),
	}
	if cfg.DiscoveryAddress != "" {
		beaconCfg.Address = net.ParseIP(cfg.DiscoveryAddress)
	}
	return discovery.NewBeacon(beaconCfg, clock)
}

// serve runs a blocking Start method and treats a regular shutdown as success.
func serve(start func() error) error {
	if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "version", info, "port", cfg.Port, "tls", cfg.TLSEnabled())

	registry := relay.NewRegistry(clock, relay.PeerOptions{
		SendBufferSize: cfg.SendBufferSize,
		WriteTimeout:   cfg.WriteTimeout,
	})
	broadcaster := relay.NewBroadcaster(registry, clock)
	hub := relay.NewHub(registry, broadcaster, clock)
	monitor := relay.NewLivenessMonitor(registry, hub.Evict, clock, cfg.PingInterval)

	srv := httpserver.NewServer(cfg, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(srv.Start) })
	if cfg.TLSEnabled() {
		g.Go(func() error { return serve(srv.StartTLS) })
	}
	g.Go(func() error { return monitor.Run(gctx) })
	if cfg.DiscoveryEnabled {
		beacon := newBeacon(cfg, clock)
		g.Go(func() error { return beacon.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Application stopped")
}
