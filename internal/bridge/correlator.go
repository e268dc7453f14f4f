// Package bridge turns the event-style bridge channel into a call/response
// protocol. Every outbound command carries a unique request identity; the
// workspace echoes it on exactly one response, which resolves the pending
// waiter. Late, duplicate, and unmatched responses are logged and discarded.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/board"
)

// DefaultTimeout bounds each outstanding request.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when the workspace does not answer in time.
var ErrTimeout = errors.New("bridge: request timed out")

// Sender writes a JSON message to the bridge channel.
type Sender interface {
	Send(name string, v any) error
}

// Result is the workspace's answer to one command: the `state` object from
// its state_response message.
type Result map[string]any

// Correlator matches outbound commands to inbound responses by request
// identity.
type Correlator struct {
	sender  Sender
	channel string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Result
}

// Config configures a Correlator.
type Config struct {
	Sender  Sender
	Channel string        // defaults to sockets.ChannelBridge's name
	Timeout time.Duration // defaults to DefaultTimeout
}

// NewCorrelator creates a correlator.
func NewCorrelator(cfg Config) *Correlator {
	if cfg.Channel == "" {
		cfg.Channel = "app_bridge"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Correlator{
		sender:  cfg.Sender,
		channel: cfg.Channel,
		timeout: cfg.Timeout,
	}
}

// Call sends a round-trip command and blocks until the matching response
// arrives, the timeout elapses, or ctx is cancelled. Malformed parameters
// resolve immediately with a validation error, without a round trip.
func (c *Correlator) Call(ctx context.Context, command string, params map[string]any) (Result, error) {
	if params == nil {
		params = map[string]any{}
	}
	if err := board.ValidateParams(command, params); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	waiter := make(chan Result, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.pending = make(map[string]chan Result)
	}
	c.pending[id] = waiter
	c.mu.Unlock()

	msg := map[string]any{
		"command":   command,
		"params":    params,
		"requestId": id,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := c.sender.Send(c.channel, msg); err != nil {
		c.drop(id)
		return nil, fmt.Errorf("bridge: send %s: %w", command, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case state := <-waiter:
		return state, nil
	case <-timer.C:
		c.drop(id)
		log.Printf("[Bridge] no response within %s for %s (%s)", c.timeout, command, id)
		return nil, fmt.Errorf("%w: %s", ErrTimeout, command)
	case <-ctx.Done():
		c.drop(id)
		return nil, ctx.Err()
	}
}

// Notify sends a fire-and-forget command: no request identity, no waiter.
func (c *Correlator) Notify(command string, params map[string]any) error {
	msg := map[string]any{
		"command":   command,
		"timestamp": time.Now().UnixMilli(),
	}
	if params != nil {
		msg["params"] = params
	}
	return c.sender.Send(c.channel, msg)
}

// HandleMessage processes one inbound bridge message. It returns true when
// the message was a state_response consumed by the correlator; other message
// types are left for the channel's other listeners.
func (c *Correlator) HandleMessage(data []byte) bool {
	var msg struct {
		Type      string         `json:"type"`
		RequestID string         `json:"requestId"`
		State     map[string]any `json:"state"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Bridge] unparseable message: %v", err)
		return false
	}
	if msg.Type != "state_response" {
		return false
	}
	if msg.RequestID == "" {
		log.Printf("[Bridge] state_response without requestId, discarded")
		return true
	}

	c.mu.Lock()
	waiter, ok := c.pending[msg.RequestID]
	if ok {
		delete(c.pending, msg.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		// Late or duplicate — the waiter already resolved or timed out.
		log.Printf("[Bridge] no pending request for %s, discarded", msg.RequestID)
		return true
	}
	waiter <- Result(msg.State)
	return true
}

// PendingCount reports the number of outstanding requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
