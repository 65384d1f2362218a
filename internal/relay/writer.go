package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/pscheid92/lanrelay/internal/metrics"
)

const (
	defaultWriteTimeout   = 5 * time.Second
	defaultSendBufferSize = 64
)

// clientWriter owns every data write to one connection. Control frames (ping, close) go through
// WriteControl, which gorilla/websocket allows concurrently with this goroutine.
type clientWriter struct {
	connection   Conn
	clock        clockwork.Clock
	writeTimeout time.Duration
	sendChannel  chan frame
	doneChannel  chan struct{}
	// failed is closed by run after a write error. stop and stopGraceful may already be inside
	// stopOnce waiting for run, so run never touches stopOnce itself.
	failed   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClientWriter(connection Conn, clock clockwork.Clock, bufferSize int, writeTimeout time.Duration) *clientWriter {
	cw := &clientWriter{
		connection:   connection,
		clock:        clock,
		writeTimeout: writeTimeout,
		sendChannel:  make(chan frame, bufferSize),
		doneChannel:  make(chan struct{}),
		failed:       make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()

	for {
		select {
		case f := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(f.messageType, f.data); err != nil {
				slog.Debug("Write failed, closing connection", "error", err)
				metrics.RelayDeliveryFailuresTotal.WithLabelValues("write_error").Inc()
				close(cw.failed)
				// Unblocks the read loop, which then unregisters the peer.
				_ = cw.connection.Close()
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-cw.doneChannel:
			return
		}
	}
}

// enqueue hands a frame to the writer goroutine. It never blocks: a full buffer or a stopped
// writer is reported as an error and the frame is dropped for this recipient only.
func (cw *clientWriter) enqueue(f frame) error {
	select {
	case <-cw.doneChannel:
		return domain.ErrWriterStopped
	case <-cw.failed:
		return domain.ErrWriterStopped
	default:
	}

	select {
	case cw.sendChannel <- f:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// ping sends a liveness probe outside the data queue.
func (cw *clientWriter) ping() error {
	deadline := cw.clock.Now().Add(cw.writeTimeout)
	return cw.connection.WriteControl(websocket.PingMessage, nil, deadline)
}

// stop terminates the connection without a close handshake.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(code int, reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(code, reason)
		deadline := cw.clock.Now().Add(cw.writeTimeout)
		_ = cw.connection.WriteControl(websocket.CloseMessage, closeMsg, deadline)

		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) updateWriteDeadline() {
	deadline := cw.clock.Now().Add(cw.writeTimeout)
	_ = cw.connection.SetWriteDeadline(deadline)
}
