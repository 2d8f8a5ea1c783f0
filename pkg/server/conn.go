package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Conn is one accepted websocket connection.
//
// The underlying socket belongs to its read goroutine. Everyone else only
// writes to it, after checking Alive.
type Conn struct {
	id     transport.ConnID
	ws     *websocket.Conn
	remote string

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closed atomic.Bool
}

func newConn(id transport.ConnID, ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           id,
		ws:           ws,
		remote:       ws.RemoteAddr().String(),
		writeTimeout: writeTimeout,
	}
}

// ID returns the identity of the connection.
func (c *Conn) ID() transport.ConnID {
	return c.id
}

// RemoteAddr returns the peer address captured at accept time.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Alive reports whether the connection has not been closed.
func (c *Conn) Alive() bool {
	return !c.closed.Load()
}

// WriteBinary sends data as one binary frame.
func (c *Conn) WriteBinary(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return NewConnError(c.id, "write", err)
	}
	return nil
}

// Close sends a normal close frame and closes the socket. Safe to call more
// than once and from any goroutine.
func (c *Conn) Close() {
	c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with the given close code.
func (c *Conn) CloseWithCode(code int, text string) {
	if c.closed.Swap(true) {
		return
	}

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(time.Second),
	)
	c.ws.Close()
}

// markClosed closes the socket without a close frame, after the peer is gone.
func (c *Conn) markClosed() {
	if c.closed.Swap(true) {
		return
	}
	c.ws.Close()
}
