package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

const defaultPingInterval = 3 * time.Second

// LivenessMonitor probes every registered peer once per interval. A peer that has not answered
// the previous probe by the next tick is handed to onDead; one missed tick is tolerated.
type LivenessMonitor struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	onDead   func(*Peer)
}

// NewLivenessMonitor creates a monitor. onDead must remove the peer from registry and close its
// transport; Hub.Evict does both.
func NewLivenessMonitor(registry *Registry, onDead func(*Peer), clock clockwork.Clock, interval time.Duration) *LivenessMonitor {
	if interval <= 0 {
		interval = defaultPingInterval
	}
	return &LivenessMonitor{
		registry: registry,
		clock:    clock,
		interval: interval,
		onDead:   onDead,
	}
}

// Run probes peers until ctx is cancelled.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("Liveness monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Liveness monitor stopped")
			return nil
		case <-ticker.Chan():
			m.probe()
		}
	}
}

func (m *LivenessMonitor) probe() {
	m.registry.ForEach(func(peer *Peer) {
		if !peer.beginProbe() {
			slog.Info("Client did not respond to a ping, terminating", "connection_id", peer.ID.String(), "origin", peer.Origin)
			metrics.LivenessEvictionsTotal.Inc()
			m.onDead(peer)
			return
		}

		// A failed ping leaves alive cleared, so the next tick evicts the peer.
		if err := peer.ping(); err != nil {
			slog.Debug("Ping failed", "connection_id", peer.ID.String(), "error", err)
			metrics.WebSocketPingFailures.Inc()
			return
		}
		metrics.LivenessProbesTotal.Inc()
	})
}
