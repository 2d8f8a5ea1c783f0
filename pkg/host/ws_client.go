package host

import (
	"errors"

	"github.com/rabbitcontrol/rcpbridge/pkg/client"
)

// WebsocketClient is a plain websocket client. Its outlet reports the
// connection state and whatever the server sends, binary and text.
type WebsocketClient struct {
	loop *Loop
	out  Outlet
	conn *client.Transport
}

// NewWebsocketClient creates a WebsocketClient. A nil config uses
// client.DefaultConfig().
func NewWebsocketClient(loop *Loop, out Outlet, config *client.Config) *WebsocketClient {
	if config == nil {
		config = client.DefaultConfig()
	}
	wc := &WebsocketClient{loop: loop, out: out}
	wc.conn = client.New(config.WithName("ws.client"), (*wsClientEvents)(wc))
	return wc
}

// Open connects to uri, offering subprotocol if not empty.
func (wc *WebsocketClient) Open(uri, subprotocol string) error {
	return wc.conn.Connect(uri, subprotocol)
}

// Close disconnects. The outlet reports the disconnect.
func (wc *WebsocketClient) Close() {
	open := wc.conn.IsOpen()
	wc.conn.Disconnect()
	if open {
		wc.out.Connected(false)
	}
}

// Send writes a binary frame. Sending while closed does nothing.
func (wc *WebsocketClient) Send(data []byte) error {
	return ignoreNotConnected(wc.conn.Send(data))
}

// SendText writes a text frame. Sending while closed does nothing.
func (wc *WebsocketClient) SendText(text string) error {
	return ignoreNotConnected(wc.conn.SendText(text))
}

// IsOpen reports whether the connection is open.
func (wc *WebsocketClient) IsOpen() bool { return wc.conn.IsOpen() }

// Dispose closes the connection for good.
func (wc *WebsocketClient) Dispose() { wc.conn.Close() }

func ignoreNotConnected(err error) error {
	if errors.Is(err, client.ErrNotConnected) {
		return nil
	}
	return err
}

type wsClientEvents WebsocketClient

func (e *wsClientEvents) Connected() {
	e.loop.post(func() { e.out.Connected(true) })
}

func (e *wsClientEvents) Failed(int) {
	e.loop.post(func() { e.out.Connected(false) })
}

func (e *wsClientEvents) Disconnected(int) {
	e.loop.post(func() { e.out.Connected(false) })
}

func (e *wsClientEvents) Received(data []byte) {
	e.loop.post(func() { e.out.Data(data) })
}

func (e *wsClientEvents) ReceivedText(text string) {
	e.loop.post(func() { e.out.Text(text) })
}
