package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/pscheid92/lanrelay/internal/metrics"
	"github.com/pscheid92/lanrelay/internal/platform/retry"
)

// Interfaces may still be waiting for DHCP when the relay boots.
var defaultResolvePolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	MaxBackoff:     8 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Broadcast address not available yet", "attempt", attempt, "retry_in", backoff, "error", err)
	},
}

// Config controls what the beacon sends, where and how often.
type Config struct {
	Port     int
	Interval time.Duration
	Payload  []byte
	// Address overrides the broadcast address derived from the local interfaces.
	Address net.IP
}

// Beacon periodically sends Config.Payload to the broadcast address. Send failures are logged
// and retried on the next tick; nothing the beacon does can stop the process.
type Beacon struct {
	cfg           Config
	clock         clockwork.Clock
	resolve       func() (net.IP, error)
	resolvePolicy retry.Policy
	listen        func() (net.PacketConn, error)

	// Owned by the Run goroutine.
	conn   net.PacketConn
	target *net.UDPAddr
}

// NewBeacon creates a beacon. It does nothing until Run is called.
func NewBeacon(cfg Config, clock clockwork.Clock) *Beacon {
	return &Beacon{
		cfg:           cfg,
		clock:         clock,
		resolve:       LocalBroadcastAddress,
		resolvePolicy: defaultResolvePolicy,
		listen: func() (net.PacketConn, error) {
			// The runtime enables SO_BROADCAST on IPv4 datagram sockets.
			return net.ListenPacket("udp4", ":0")
		},
	}
}

// Run sends one datagram per interval until ctx is cancelled. The broadcast address is resolved
// once, before the first tick.
func (b *Beacon) Run(ctx context.Context) error {
	b.target = b.resolveTarget(ctx)
	if ctx.Err() != nil {
		return nil
	}
	b.conn = b.openSocket()
	defer b.closeSocket()

	ticker := b.clock.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Discovery beacon stopped")
			return nil
		case <-ticker.Chan():
			b.announce()
		}
	}
}

func (b *Beacon) resolveTarget(ctx context.Context) *net.UDPAddr {
	ip := b.cfg.Address
	if ip == nil {
		resolved, err := retry.Do(ctx, b.clock, b.resolvePolicy, classifyResolveError, b.resolve)
		if err != nil {
			slog.Error("Failed to resolve broadcast address", "error", err)
			return nil
		}
		ip = resolved
	}

	target := &net.UDPAddr{IP: ip, Port: b.cfg.Port}
	slog.Info("Discovery beacon ready", "address", target.String(), "interval", b.cfg.Interval)
	return target
}

func classifyResolveError(err error) retry.Action {
	if errors.Is(err, domain.ErrNoBroadcastAddress) {
		return retry.Retry
	}
	return retry.Stop
}

func (b *Beacon) openSocket() net.PacketConn {
	conn, err := b.listen()
	if err != nil {
		slog.Error("Failed to open discovery socket", "error", err)
		return nil
	}
	return conn
}

func (b *Beacon) closeSocket() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func (b *Beacon) announce() {
	if b.target == nil {
		slog.Error("No broadcast address found")
		metrics.DiscoveryBeaconsTotal.WithLabelValues("no_address").Inc()
		return
	}

	if b.conn == nil {
		if b.conn = b.openSocket(); b.conn == nil {
			metrics.DiscoveryBeaconsTotal.WithLabelValues("error").Inc()
			return
		}
	}

	if _, err := b.conn.WriteTo(b.cfg.Payload, b.target); err != nil {
		slog.Error("Error sending broadcast message", "address", b.target.String(), "error", err)
		metrics.DiscoveryBeaconsTotal.WithLabelValues("error").Inc()
		// Reopen on the next tick in case the socket itself went bad.
		b.closeSocket()
		return
	}

	slog.Debug("Broadcast message sent", "address", b.target.String())
	metrics.DiscoveryBeaconsTotal.WithLabelValues("sent").Inc()
}
