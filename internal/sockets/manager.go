// Package sockets maintains easel's named persistent websocket channels to
// the local workspace app: "chat", "audio", and "bridge".
//
// Each channel's lifecycle is a tagged state (Closed, Connecting, Open)
// driven through a single dispatch function. The manager survives transient
// failures by scheduling a reconnect after a fixed delay — the endpoint is a
// stable local service, so the delay is deliberately not backed off.
package sockets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Channel names.
const (
	ChannelChat   = "chat"
	ChannelAudio  = "audio"
	ChannelBridge = "app_bridge"
)

// DefaultReconnectDelay is the fixed wait before re-dialing a closed channel.
const DefaultReconnectDelay = 5 * time.Second

// State is a channel's connection lifecycle state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// ErrNotOpen is returned by Send when the channel has no open connection.
// Callers treat it as transient: a reconnect is already scheduled.
var ErrNotOpen = errors.New("sockets: channel not open")

// Listener receives every inbound message on a channel.
type Listener func(data []byte)

// channel holds per-name connection state. All fields are guarded by the
// manager's mutex.
type channel struct {
	name     string
	endpoint string
	state    State
	conn     Conn

	listeners      map[int]Listener
	nextListenerID int

	// writeMu serializes writes; websocket conns allow one writer at a time.
	writeMu sync.Mutex

	reconnectTimer *time.Timer
}

// event drives channel state transitions.
type event int

const (
	evConnect event = iota
	evDialOK
	evDialFailed
	evConnLost
	evDisconnect
)

// Manager owns zero or more named channels. It is constructed explicitly and
// injected into the components that need it; there is no package-level
// instance.
type Manager struct {
	mu             sync.Mutex
	dial           Dialer
	reconnectDelay time.Duration
	channels       map[string]*channel
	shutdown       bool
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Dialer         Dialer        // defaults to the gorilla websocket dialer
	ReconnectDelay time.Duration // defaults to DefaultReconnectDelay
}

// NewManager creates a channel manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		dial:           cfg.Dialer,
		reconnectDelay: cfg.ReconnectDelay,
		channels:       make(map[string]*channel),
	}
}

// Connect opens a named channel to an endpoint and registers onMessage as its
// first listener. Calling Connect while the channel is open or a connection
// attempt is pending is a no-op, which keeps the one-connection-per-name
// invariant trivially true.
func (m *Manager) Connect(name, endpoint string, onMessage Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[name]
	if !ok {
		ch = &channel{
			name:      name,
			listeners: make(map[int]Listener),
		}
		m.channels[name] = ch
	}
	// Subscribe may have created the entry without an endpoint; Connect is
	// the only caller that knows it.
	ch.endpoint = endpoint
	if onMessage != nil {
		ch.listeners[ch.nextListenerID] = onMessage
		ch.nextListenerID++
	}
	m.dispatch(ch, evConnect)
}

// Subscribe registers an additional listener on a channel and returns an
// unsubscribe func. The channel does not need to be connected yet.
func (m *Manager) Subscribe(name string, fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[name]
	if !ok {
		ch = &channel{name: name, listeners: make(map[int]Listener)}
		m.channels[name] = ch
	}
	id := ch.nextListenerID
	ch.nextListenerID++
	ch.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(ch.listeners, id)
	}
}

// Send marshals v as JSON and writes it to the named channel. Returns
// ErrNotOpen when the channel is down; callers must treat that as transient.
func (m *Manager) Send(name string, v any) error {
	m.mu.Lock()
	ch, ok := m.channels[name]
	if !ok || ch.state != StateOpen || ch.conn == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, name)
	}
	conn := ch.conn
	m.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sockets: marshal for %s: %w", name, err)
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return conn.WriteMessage(TextMessage, data)
}

// SendBinary writes raw bytes to the named channel.
func (m *Manager) SendBinary(name string, data []byte) error {
	m.mu.Lock()
	ch, ok := m.channels[name]
	if !ok || ch.state != StateOpen || ch.conn == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, name)
	}
	conn := ch.conn
	m.mu.Unlock()

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return conn.WriteMessage(BinaryMessage, data)
}

// State reports the lifecycle state of a named channel.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[name]; ok {
		return ch.state
	}
	return StateClosed
}

// Disconnect cancels any pending reconnect and closes the named channel.
func (m *Manager) Disconnect(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[name]; ok {
		m.dispatch(ch, evDisconnect)
	}
}

// DisconnectAll closes every channel. Used at process shutdown; no channel
// will reconnect afterwards.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	for _, ch := range m.channels {
		m.dispatch(ch, evDisconnect)
	}
}

// dispatch is the single transition function for channel lifecycle state.
// Callers must hold m.mu.
func (m *Manager) dispatch(ch *channel, ev event) {
	switch ev {
	case evConnect:
		if ch.state != StateClosed {
			return // already open or connecting — idempotent
		}
		ch.state = StateConnecting
		go m.dialChannel(ch.name, ch.endpoint)

	case evDialOK:
		ch.state = StateOpen
		log.Printf("[Sockets] %s connected (%s)", ch.name, ch.endpoint)

	case evDialFailed, evConnLost:
		if ch.conn != nil {
			ch.conn.Close()
			ch.conn = nil
		}
		ch.state = StateClosed
		if m.shutdown {
			return
		}
		m.scheduleReconnect(ch)

	case evDisconnect:
		if ch.reconnectTimer != nil {
			ch.reconnectTimer.Stop()
			ch.reconnectTimer = nil
		}
		if ch.conn != nil {
			ch.conn.Close()
			ch.conn = nil
		}
		ch.state = StateClosed
	}
}

// scheduleReconnect arms the fixed-delay reconnect timer. Callers hold m.mu.
func (m *Manager) scheduleReconnect(ch *channel) {
	if ch.reconnectTimer != nil {
		return // one pending reconnect at a time
	}
	name := ch.name
	log.Printf("[Sockets] %s down, reconnecting in %s", name, m.reconnectDelay)
	ch.reconnectTimer = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.channels[name]
		if !ok {
			return
		}
		c.reconnectTimer = nil
		m.dispatch(c, evConnect)
	})
}

// dialChannel performs the blocking dial for one connection attempt, then
// runs the read loop. Only one dialChannel goroutine can exist per name
// because dispatch only spawns it on the Closed→Connecting transition.
func (m *Manager) dialChannel(name, endpoint string) {
	conn, err := m.dial(endpoint)

	m.mu.Lock()
	ch, ok := m.channels[name]
	if !ok || ch.state != StateConnecting {
		// Disconnected while dialing — drop the fresh conn if any.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		log.Printf("[Sockets] %s dial failed: %v", name, err)
		m.dispatch(ch, evDialFailed)
		m.mu.Unlock()
		return
	}
	ch.conn = conn
	m.dispatch(ch, evDialOK)
	m.mu.Unlock()

	m.readLoop(name, conn)
}

// readLoop fans inbound messages out to the channel's listeners until the
// connection drops.
func (m *Manager) readLoop(name string, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			ch, ok := m.channels[name]
			if ok && ch.conn == conn {
				log.Printf("[Sockets] %s read error: %v", name, err)
				m.dispatch(ch, evConnLost)
			}
			m.mu.Unlock()
			return
		}

		m.mu.Lock()
		ch, ok := m.channels[name]
		if !ok {
			m.mu.Unlock()
			return
		}
		listeners := make([]Listener, 0, len(ch.listeners))
		for _, fn := range ch.listeners {
			listeners = append(listeners, fn)
		}
		m.mu.Unlock()

		for _, fn := range listeners {
			fn(data)
		}
	}
}
