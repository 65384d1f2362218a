package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

// Registry tracks every live peer by ID. Register and Unregister are O(1); ForEach iterates a
// snapshot so visitors may unregister peers (or block) without holding the lock.
type Registry struct {
	mu    sync.RWMutex
	peers map[uuid.UUID]*Peer
	clock clockwork.Clock
	opts  PeerOptions
}

// NewRegistry creates an empty registry. opts apply to every peer it registers.
func NewRegistry(clock clockwork.Clock, opts PeerOptions) *Registry {
	return &Registry{
		peers: make(map[uuid.UUID]*Peer),
		clock: clock,
		opts:  opts.withDefaults(),
	}
}

// Register creates a peer for conn with a fresh random ID, starts its writer and stores it.
// The pong handler is installed here, so Register must run before the connection is read from.
func (r *Registry) Register(conn Conn, origin string) *Peer {
	peer := &Peer{
		Origin:      origin,
		ConnectedAt: r.clock.Now(),
		conn:        conn,
		writer:      newClientWriter(conn, r.clock, r.opts.SendBufferSize, r.opts.WriteTimeout),
	}
	peer.alive.Store(true)
	conn.SetPongHandler(func(string) error {
		peer.markAlive()
		return nil
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	for r.peers[id] != nil {
		id = uuid.New()
	}
	peer.ID = id
	r.peers[id] = peer
	metrics.RelayConnectedPeers.Set(float64(len(r.peers)))

	return peer
}

// Unregister removes the peer with the given ID. The boolean is false when the peer was not
// registered, which makes concurrent removal paths safe: only one of them sees true.
func (r *Registry) Unregister(id uuid.UUID) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[id]
	if !ok {
		return nil, false
	}
	delete(r.peers, id)
	metrics.RelayConnectedPeers.Set(float64(len(r.peers)))

	return peer, true
}

func (r *Registry) lookup(id uuid.UUID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[id]
	return peer, ok
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// ForEach calls visit for every peer registered at call time.
func (r *Registry) ForEach(visit func(*Peer)) {
	for _, peer := range r.snapshot() {
		visit(peer)
	}
}

func (r *Registry) snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Peer, 0, len(r.peers))
	for _, peer := range r.peers {
		peers = append(peers, peer)
	}
	return peers
}
