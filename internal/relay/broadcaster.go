package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

const (
	commandBufferSize = 256
	stopTimeout       = 10 * time.Second
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type relayCmd struct {
	baseBroadcasterCmd
	sender uuid.UUID
	frame  frame
}

type notifyCmd struct {
	baseBroadcasterCmd
	event        string
	notification domain.Notification
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster fans frames out to the peers of a Registry. All fan-out happens on one goroutine,
// so frames submitted by one sender reach every recipient in submission order.
type Broadcaster struct {
	cmdCh       chan broadcasterCmd
	clock       clockwork.Clock
	registry    *Registry
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewBroadcaster creates a broadcaster over registry and starts its goroutine.
func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	b := &Broadcaster{
		cmdCh:       make(chan broadcasterCmd, commandBufferSize),
		clock:       clock,
		registry:    registry,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go b.run()
	return b
}

// Message relays payload from sender to every other registered peer, keeping its frame type.
func (b *Broadcaster) Message(sender uuid.UUID, messageType int, payload []byte) error {
	return b.submit(relayCmd{sender: sender, frame: frame{messageType: messageType, data: payload}})
}

// Join announces a newly registered peer to every registered peer, the new one included.
func (b *Broadcaster) Join(id uuid.UUID, origin string) error {
	return b.submit(notifyCmd{event: "join", notification: domain.JoinNotification(id, origin)})
}

// Leave announces a removed peer to every peer still registered.
func (b *Broadcaster) Leave(id uuid.UUID, origin string) error {
	return b.submit(notifyCmd{event: "leave", notification: domain.LeaveNotification(id, origin)})
}

func (b *Broadcaster) submit(cmd broadcasterCmd) error {
	select {
	case <-b.done:
		return domain.ErrHubStopped
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.done:
		return domain.ErrHubStopped
	}
}

// Stop shuts the broadcaster down. Commands submitted afterwards fail with ErrHubStopped.
// Blocks until the goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		select {
		case b.cmdCh <- stopCmd{}:
		case <-b.done:
			return
		}

		timeout := b.clock.NewTimer(b.stopTimeout)
		defer timeout.Stop()

		select {
		case <-b.done:
			slog.Info("Broadcaster stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
			metrics.BroadcasterStopTimeoutsTotal.Inc()
		}
	})
}

func (b *Broadcaster) run() {
	defer close(b.done)

	// Track command channel depth every second
	depthTicker := b.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			metrics.BroadcasterCommandChannelDepth.Set(float64(depth))
			if depth > commandBufferSize*4/5 {
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			if _, ok := cmd.(stopCmd); ok {
				return
			}
			b.handle(cmd)
		}
	}
}

// handle runs one command. A panic is recovered here so that the actor keeps serving later
// commands; only the failed command is lost.
func (b *Broadcaster) handle(cmd broadcasterCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r, "command_type", fmt.Sprintf("%T", cmd))
			metrics.BroadcasterPanicsTotal.Inc()
		}
	}()

	switch c := cmd.(type) {
	case relayCmd:
		b.handleRelay(c)
	case notifyCmd:
		b.handleNotify(c)
	default:
		slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (b *Broadcaster) handleRelay(c relayCmd) {
	metrics.RelayMessagesTotal.WithLabelValues(frameTypeName(c.frame.messageType)).Inc()
	b.fanOut(c.frame, c.sender)
}

func (b *Broadcaster) handleNotify(c notifyCmd) {
	data, err := json.Marshal(c.notification)
	if err != nil {
		slog.Error("Failed to marshal notification", "event", c.event, "error", err)
		return
	}
	metrics.RelayNotificationsTotal.WithLabelValues(c.event).Inc()
	b.fanOut(frame{messageType: websocket.TextMessage, data: data}, uuid.Nil)
}

// fanOut queues f for every registered peer except skip. A recipient that cannot take the frame
// is logged and skipped; the remaining recipients are unaffected.
func (b *Broadcaster) fanOut(f frame, skip uuid.UUID) {
	start := b.clock.Now()
	defer func() {
		metrics.RelayFanoutDuration.Observe(b.clock.Since(start).Seconds())
	}()

	b.registry.ForEach(func(peer *Peer) {
		if peer.ID == skip {
			return
		}
		if err := peer.send(f); err != nil {
			reason := "buffer_full"
			if errors.Is(err, domain.ErrWriterStopped) {
				reason = "writer_stopped"
			}
			slog.Warn("Dropping frame for peer", "connection_id", peer.ID.String(), "reason", reason)
			metrics.RelayDeliveryFailuresTotal.WithLabelValues(reason).Inc()
			return
		}
		metrics.RelayDeliveriesTotal.Inc()
	})
}
