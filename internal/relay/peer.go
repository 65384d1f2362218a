package relay

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PeerOptions tune the outbound side of every peer.
type PeerOptions struct {
	// SendBufferSize is the number of frames queued per peer before new frames are dropped.
	SendBufferSize int
	// WriteTimeout bounds every write, including pings and close frames.
	WriteTimeout time.Duration
}

func (o PeerOptions) withDefaults() PeerOptions {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = defaultSendBufferSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

// Peer is one live connection known to the registry.
type Peer struct {
	ID          uuid.UUID
	Origin      string
	ConnectedAt time.Time

	conn   Conn
	writer *clientWriter

	// alive is cleared by the liveness monitor when it sends a ping and set again by the pong
	// handler. A peer found with alive == false on the next tick missed its probe.
	alive atomic.Bool
}

// isAlive reports whether the peer answered the most recent liveness probe.
func (p *Peer) isAlive() bool {
	return p.alive.Load()
}

func (p *Peer) markAlive() {
	p.alive.Store(true)
}

// beginProbe clears the alive flag. It returns false when the flag was already clear, i.e. the
// previous probe was never answered.
func (p *Peer) beginProbe() bool {
	return p.alive.CompareAndSwap(true, false)
}

func (p *Peer) send(f frame) error {
	return p.writer.enqueue(f)
}

func (p *Peer) ping() error {
	return p.writer.ping()
}

func (p *Peer) terminate() {
	p.writer.stop()
}

func (p *Peer) closeGraceful(code int, reason string) {
	p.writer.stopGraceful(code, reason)
}
