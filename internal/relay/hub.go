package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/pscheid92/lanrelay/internal/metrics"
	"github.com/pscheid92/lanrelay/internal/platform/correlation"
)

const shutdownReason = "Server shutting down"

// Hub runs peer sessions against a Registry and a Broadcaster. Front ends hand every accepted
// connection to Serve, regardless of the listener it came from.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	clock       clockwork.Clock
	stopped     atomic.Bool
}

// NewHub creates a hub. The broadcaster must fan out over the same registry.
func NewHub(registry *Registry, broadcaster *Broadcaster, clock clockwork.Clock) *Hub {
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

// Serve registers conn, announces it and relays its inbound frames until the transport fails or
// the peer is terminated elsewhere. It blocks for the lifetime of the connection.
func (h *Hub) Serve(ctx context.Context, conn Conn, origin string) error {
	if h.stopped.Load() {
		_ = conn.Close()
		metrics.RelayConnectionsTotal.WithLabelValues("rejected_stopped").Inc()
		return domain.ErrHubStopped
	}

	peer := h.registry.Register(conn, origin)
	if h.stopped.Load() {
		// Stop ran between the check above and Register; its sweep may have missed this peer.
		if _, removed := h.registry.Unregister(peer.ID); removed {
			peer.closeGraceful(websocket.CloseGoingAway, shutdownReason)
		}
		metrics.RelayConnectionsTotal.WithLabelValues("rejected_stopped").Inc()
		return domain.ErrHubStopped
	}
	ctx = correlation.WithConnectionID(ctx, peer.ID.String())
	metrics.RelayConnectionsTotal.WithLabelValues("accepted").Inc()
	slog.InfoContext(ctx, "Client connected", "origin", origin, "connected_clients", h.registry.Count())

	if err := h.broadcaster.Join(peer.ID, origin); err != nil {
		slog.WarnContext(ctx, "Failed to announce join", "error", err)
	}

	h.readLoop(ctx, peer)
	h.disconnect(ctx, peer, "closed")
	return nil
}

func (h *Hub) readLoop(ctx context.Context, peer *Peer) {
	for {
		messageType, payload, err := peer.conn.ReadMessage()
		if err != nil {
			logReadError(ctx, err)
			return
		}

		slog.DebugContext(ctx, "Message received", "frame_type", frameTypeName(messageType), "bytes", len(payload))
		if err := h.broadcaster.Message(peer.ID, messageType, payload); err != nil {
			slog.WarnContext(ctx, "Failed to relay message", "error", err)
		}
	}
}

func logReadError(ctx context.Context, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		slog.DebugContext(ctx, "Connection closed by peer", "error", err)
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		slog.InfoContext(ctx, "Connection closed abnormally", "code", closeErr.Code, "error", err)
		return
	}
	slog.DebugContext(ctx, "Connection read failed", "error", err)
}

// Evict terminates a peer that stopped answering liveness probes.
func (h *Hub) Evict(peer *Peer) {
	ctx := correlation.WithConnectionID(context.Background(), peer.ID.String())
	h.disconnect(ctx, peer, "liveness")
}

// disconnect removes peer, closes its transport and announces the departure. Whichever caller
// unregisters the peer first does the work; every later call is a no-op.
func (h *Hub) disconnect(ctx context.Context, peer *Peer, reason string) bool {
	if _, removed := h.registry.Unregister(peer.ID); !removed {
		return false
	}
	peer.terminate()

	metrics.RelayDisconnectsTotal.WithLabelValues(reason).Inc()
	metrics.WebSocketConnectionDuration.Observe(h.clock.Since(peer.ConnectedAt).Seconds())
	slog.InfoContext(ctx, "Client disconnected", "reason", reason, "remaining_clients", h.registry.Count())

	if err := h.broadcaster.Leave(peer.ID, peer.Origin); err != nil {
		slog.WarnContext(ctx, "Failed to announce leave", "error", err)
	}
	return true
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	return h.registry.Count()
}

// Ready reports whether the hub still accepts connections.
func (h *Hub) Ready() bool {
	return !h.stopped.Load()
}

// Stop rejects new connections, stops the broadcaster and closes every peer with a close frame.
// No leave notifications are sent during shutdown.
func (h *Hub) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	h.broadcaster.Stop()

	closed := 0
	h.registry.ForEach(func(peer *Peer) {
		if _, removed := h.registry.Unregister(peer.ID); !removed {
			return
		}
		peer.closeGraceful(websocket.CloseGoingAway, shutdownReason)
		metrics.RelayDisconnectsTotal.WithLabelValues("shutdown").Inc()
		closed++
	})
	slog.Info("Relay hub stopped", "disconnected_clients", closed)
}
