package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lanrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. Reads block until Close; writes are recorded.
type fakeConn struct {
	mu          sync.Mutex
	written     []frame
	controls    []int
	deadline    time.Time
	pongHandler func(string) error
	writeErr    error

	// block, when set, holds every WriteMessage until it is closed or the conn is closed.
	block     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, net.ErrClosed
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-c.closed:
			return net.ErrClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, frame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) SetPongHandler(h func(appData string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongHandler = h
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.written...)
}

func (c *fakeConn) controlFrames() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.controls...)
}

func (c *fakeConn) writeDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

func (c *fakeConn) pong() {
	c.mu.Lock()
	h := c.pongHandler
	c.mu.Unlock()
	_ = h("")
}

// registerFake registers a fakeConn and terminates the peer when the test ends.
func registerFake(t *testing.T, registry *Registry, conn *fakeConn) *Peer {
	t.Helper()
	peer := registry.Register(conn, "10.0.0.1:4000")
	t.Cleanup(peer.terminate)
	return peer
}

// newTestConnPair returns both ends of a real WebSocket connection.
func newTestConnPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { _ = serverConn.Close() })

	return serverConn, clientConn
}

type receivedFrame struct {
	messageType int
	data        []byte
}

// testClient reads from the client side of a connection in the background, the way a browser
// would. Pings are counted and answered only when answerPings is set.
type testClient struct {
	conn   *websocket.Conn
	id     uuid.UUID
	frames chan receivedFrame
	pings  atomic.Int32

	done    chan struct{}
	readErr error
}

func newTestClient(conn *websocket.Conn, answerPings bool) *testClient {
	c := &testClient{
		conn:   conn,
		frames: make(chan receivedFrame, 256),
		done:   make(chan struct{}),
	}
	conn.SetPingHandler(func(appData string) error {
		c.pings.Add(1)
		if !answerPings {
			return nil
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	go c.readLoop()
	return c
}

func (c *testClient) readLoop() {
	defer close(c.done)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		c.frames <- receivedFrame{messageType: messageType, data: data}
	}
}

func (c *testClient) origin() string {
	return c.conn.LocalAddr().String()
}

func (c *testClient) send(t *testing.T, messageType int, data []byte) {
	t.Helper()
	require.NoError(t, c.conn.WriteMessage(messageType, data))
}

func (c *testClient) next(t *testing.T) receivedFrame {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(readTimeout):
		t.Fatal("timed out waiting for a frame")
		return receivedFrame{}
	}
}

func (c *testClient) nextNotification(t *testing.T) domain.Notification {
	t.Helper()
	f := c.next(t)
	require.Equal(t, websocket.TextMessage, f.messageType)

	var n domain.Notification
	require.NoError(t, json.Unmarshal(f.data, &n))
	require.Equal(t, domain.NotificationType, n.Type)
	return n
}

func (c *testClient) expectNoFrame(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame: %q", f.data)
	case <-time.After(wait):
	}
}

// waitClosed waits for the relay to drop the connection and returns the read error.
func (c *testClient) waitClosed(t *testing.T) error {
	t.Helper()
	select {
	case <-c.done:
		return c.readErr
	case <-time.After(readTimeout):
		t.Fatal("connection was not closed")
		return nil
	}
}

// testRelay serves a Hub over httptest, like the HTTP front end does.
type testRelay struct {
	registry    *Registry
	broadcaster *Broadcaster
	hub         *Hub
	url         string
}

func newTestRelay(t *testing.T, clock clockwork.Clock, opts PeerOptions) *testRelay {
	t.Helper()

	registry := NewRegistry(clock, opts)
	broadcaster := NewBroadcaster(registry, clock)
	hub := NewHub(registry, broadcaster, clock)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(context.Background(), conn, r.RemoteAddr)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Stop)

	return &testRelay{
		registry:    registry,
		broadcaster: broadcaster,
		hub:         hub,
		url:         "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (r *testRelay) dial(t *testing.T, answerPings bool) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return newTestClient(conn, answerPings)
}

// connect dials a new client and consumes its join notification on the new client and on every
// client in others.
func (r *testRelay) connect(t *testing.T, answerPings bool, others ...*testClient) *testClient {
	t.Helper()
	c := r.dial(t, answerPings)

	self := c.nextNotification(t)
	id, err := uuid.Parse(self.ClientID)
	require.NoError(t, err)
	c.id = id
	assert.Equal(t, c.origin(), self.Origin)

	for _, other := range others {
		n := other.nextNotification(t)
		require.Equal(t, self.ClientID, n.ClientID, "peers should be told about the new client")
	}
	return c
}

func (r *testRelay) peer(t *testing.T, c *testClient) *Peer {
	t.Helper()
	peer, ok := r.registry.lookup(c.id)
	require.True(t, ok, "client %s is not registered", c.id)
	return peer
}

func waitForCount(r *testRelay, expected int) bool {
	for range 200 {
		if r.hub.Count() == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
