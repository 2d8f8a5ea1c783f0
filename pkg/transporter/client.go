package transporter

import (
	"errors"
	"log/slog"

	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Client adapts a client.Transport connected to a parameter server.
type Client struct {
	conn     *client.Transport
	receiver transport.Receiver
	observer ConnectionObserver
	logger   *slog.Logger
}

// NewClient creates an unconnected Client. observer may be nil.
func NewClient(config *client.Config, r transport.Receiver, observer ConnectionObserver) *Client {
	if config == nil {
		config = client.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		receiver: r,
		observer: observer,
		logger:   logger.With("component", "transporter.client"),
	}
	c.conn = client.New(config, (*clientEvents)(c))
	return c
}

// Connect opens uri. See client.Transport.Connect.
func (c *Client) Connect(uri, subprotocol string) error {
	return c.conn.Connect(uri, subprotocol)
}

// Disconnect closes the connection without notifying the observer.
func (c *Client) Disconnect() { c.conn.Disconnect() }

// Close disconnects and waits for the client goroutines.
func (c *Client) Close() { c.conn.Close() }

// SendToOne sends data to the server; id is ignored.
func (c *Client) SendToOne(_ transport.Identity, data []byte) { c.send(data) }

// SendToAllExcept sends data to the server.
func (c *Client) SendToAllExcept(_ transport.Identity, data []byte) { c.send(data) }

// Bind is a no-op: a client does not listen.
func (c *Client) Bind(uint16) error { return nil }

// Unbind disconnects.
func (c *Client) Unbind() { c.conn.Disconnect() }

// Port is always 0.
func (c *Client) Port() uint16 { return 0 }

// IsListening reports whether the connection is open.
func (c *Client) IsListening() bool { return c.conn.IsOpen() }

// Transport returns the wrapped client transport.
func (c *Client) Transport() *client.Transport { return c.conn }

func (c *Client) send(data []byte) {
	if err := c.conn.Send(data); err != nil && !errors.Is(err, client.ErrNotConnected) {
		c.logger.Debug("send failed", "uri", c.conn.URI(), "error", err)
	}
}

type clientEvents Client

func (e *clientEvents) Connected() {
	if e.observer != nil {
		e.observer.Connected(nil)
	}
}

func (e *clientEvents) Failed(code int) {
	e.logger.Info("connect failed", "uri", e.conn.URI(), "code", code)
}

func (e *clientEvents) Disconnected(code int) {
	e.logger.Debug("disconnected", "uri", e.conn.URI(), "code", code)
	if e.observer != nil {
		e.observer.Disconnected(nil)
	}
}

func (e *clientEvents) Received(data []byte) {
	if e.receiver != nil {
		e.receiver.Received((*Client)(e), data, nil)
	}
}

func (e *clientEvents) ReceivedText(text string) {
	e.logger.Debug("text frame dropped", "bytes", len(text))
}
