package sockets

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scriptable connection. Reads block on the inbound channel;
// writes are recorded.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, errors.New("connection reset")
		}
		return TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) dropConnection() {
	close(c.inbound)
}

// fakeDialer hands out fresh fakeConns and records every dial.
type fakeDialer struct {
	mu        sync.Mutex
	conns     []*fakeConn
	endpoints []string
	fail      atomic.Bool
}

func (d *fakeDialer) dial(endpoint string) (Conn, error) {
	d.mu.Lock()
	d.endpoints = append(d.endpoints, endpoint)
	d.mu.Unlock()
	if d.fail.Load() {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) endpoint(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpoints[i]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func waitForState(t *testing.T, m *Manager, name string, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State(name) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel %s never reached state %s (now %s)", name, want, m.State(name))
}

func TestConnectOpensChannel(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	m.Connect(ChannelChat, "ws://test/chat", nil)
	waitForState(t, m, ChannelChat, StateOpen)
	assert.Equal(t, 1, d.dialCount())
}

func TestConnectIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	m.Connect(ChannelChat, "ws://test/chat", nil)
	waitForState(t, m, ChannelChat, StateOpen)
	m.Connect(ChannelChat, "ws://test/chat", nil)
	m.Connect(ChannelChat, "ws://test/chat", nil)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
}

func TestConnectAfterSubscribeDialsEndpoint(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	// Subscribe first: the channel entry exists but has no endpoint yet.
	unsub := m.Subscribe(ChannelBridge, func([]byte) {})
	defer unsub()

	m.Connect(ChannelBridge, "ws://test/bridge", nil)
	waitForState(t, m, ChannelBridge, StateOpen)

	require.Equal(t, 1, d.dialCount())
	assert.Equal(t, "ws://test/bridge", d.endpoint(0))
}

func TestSendWhenClosedReturnsErrNotOpen(t *testing.T) {
	m := NewManager(ManagerConfig{Dialer: (&fakeDialer{}).dial})
	err := m.Send(ChannelChat, map[string]any{"text": "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotOpen))
}

func TestSendWritesJSON(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	m.Connect(ChannelChat, "ws://test/chat", nil)
	waitForState(t, m, ChannelChat, StateOpen)

	require.NoError(t, m.Send(ChannelChat, map[string]any{"text": "hi"}))
	conn := d.conn(0)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.writes, 1)
	assert.JSONEq(t, `{"text":"hi"}`, string(conn.writes[0]))
}

func TestListenersReceiveInbound(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	got := make(chan []byte, 4)
	m.Connect(ChannelBridge, "ws://test/bridge", func(data []byte) { got <- data })
	waitForState(t, m, ChannelBridge, StateOpen)

	d.conn(0).inbound <- []byte(`{"type":"state_response"}`)
	select {
	case data := <-got:
		assert.Equal(t, `{"type":"state_response"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("listener never fired")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	var first, second atomic.Int32
	m.Connect(ChannelChat, "ws://test/chat", func([]byte) { first.Add(1) })
	unsub := m.Subscribe(ChannelChat, func([]byte) { second.Add(1) })
	waitForState(t, m, ChannelChat, StateOpen)

	d.conn(0).inbound <- []byte(`{}`)
	deadline := time.Now().Add(time.Second)
	for (first.Load() < 1 || second.Load() < 1) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.EqualValues(t, 1, first.Load())
	assert.EqualValues(t, 1, second.Load())

	unsub()
	d.conn(0).inbound <- []byte(`{}`)
	deadline = time.Now().Add(time.Second)
	for first.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.EqualValues(t, 2, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	m.Connect(ChannelAudio, "ws://test/audio", nil)
	waitForState(t, m, ChannelAudio, StateOpen)

	d.conn(0).dropConnection()
	waitForState(t, m, ChannelAudio, StateClosed)
	waitForState(t, m, ChannelAudio, StateOpen)
	assert.Equal(t, 2, d.dialCount())
}

func TestRetryAfterDialFailure(t *testing.T) {
	d := &fakeDialer{}
	d.fail.Store(true)
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})
	defer m.DisconnectAll()

	m.Connect(ChannelChat, "ws://test/chat", nil)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateClosed, m.State(ChannelChat))

	d.fail.Store(false)
	waitForState(t, m, ChannelChat, StateOpen)
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})

	m.Connect(ChannelChat, "ws://test/chat", nil)
	waitForState(t, m, ChannelChat, StateOpen)
	dials := d.dialCount()

	d.conn(0).dropConnection()
	m.Disconnect(ChannelChat)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateClosed, m.State(ChannelChat))
	assert.Equal(t, dials, d.dialCount())
}

func TestDisconnectAllStopsEverything(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(ManagerConfig{Dialer: d.dial, ReconnectDelay: 20 * time.Millisecond})

	m.Connect(ChannelChat, "ws://test/chat", nil)
	m.Connect(ChannelAudio, "ws://test/audio", nil)
	waitForState(t, m, ChannelChat, StateOpen)
	waitForState(t, m, ChannelAudio, StateOpen)

	m.DisconnectAll()
	assert.Equal(t, StateClosed, m.State(ChannelChat))
	assert.Equal(t, StateClosed, m.State(ChannelAudio))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, d.dialCount())
}
