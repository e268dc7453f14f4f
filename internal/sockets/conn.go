package sockets

import (
	"time"

	"github.com/gorilla/websocket"
)

// Websocket message types, re-exported so callers don't import gorilla.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Conn is the minimal connection surface the manager needs. It matches
// *websocket.Conn so the production dialer needs no wrapper type.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to an endpoint.
type Dialer func(endpoint string) (Conn, error)

// WebsocketDialer dials a websocket endpoint with a bounded handshake.
func WebsocketDialer(endpoint string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
