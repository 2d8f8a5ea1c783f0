package host

import (
	"log/slog"
	"sync"

	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// WebsocketServer is a plain websocket server. Binary frames from any
// client come out of Outlet.Data; the connection count comes out of
// Outlet.Connections.
type WebsocketServer struct {
	loop   *Loop
	out    Outlet
	config *server.Config
	logger *slog.Logger

	mu  sync.Mutex
	srv *server.Transport
}

// NewWebsocketServer creates a WebsocketServer. A nil config uses
// server.DefaultConfig().
func NewWebsocketServer(loop *Loop, out Outlet, config *server.Config) *WebsocketServer {
	if config == nil {
		config = server.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketServer{
		loop:   loop,
		out:    out,
		config: config.Clone(),
		logger: logger.With("component", "ws.server"),
	}
}

// Listen serves on port. Port 0 disposes the server; the current port is a
// no-op.
func (ws *WebsocketServer) Listen(port int) error {
	p, err := checkPort(port)
	if err != nil {
		ws.logger.Error("listen ignored", "port", port, "error", err)
		return err
	}

	ws.mu.Lock()
	old := ws.srv
	if old != nil && old.IsListening() && old.Port() == p {
		ws.mu.Unlock()
		return nil
	}
	ws.srv = nil
	ws.mu.Unlock()

	if old != nil {
		old.Unbind()
	}
	if p == 0 {
		ws.out.Connections(0)
		return nil
	}

	events := &wsServerEvents{ws: ws}
	srv := server.New(ws.config, events)
	events.srv = srv

	ws.mu.Lock()
	ws.srv = srv
	ws.mu.Unlock()

	return srv.Bind(p)
}

// Port returns the listening port, or 0.
func (ws *WebsocketServer) Port() int {
	if srv := ws.current(); srv != nil {
		return int(srv.Port())
	}
	return 0
}

// ConnectionCount returns the number of connected clients.
func (ws *WebsocketServer) ConnectionCount() int {
	if srv := ws.current(); srv != nil {
		return srv.ConnectionCount()
	}
	return 0
}

// Send writes data to every client.
func (ws *WebsocketServer) Send(data []byte) {
	if srv := ws.current(); srv != nil {
		srv.SendToAll(data, nil)
	}
}

// SendTo writes data to one client.
func (ws *WebsocketServer) SendTo(id transport.Identity, data []byte) {
	if srv := ws.current(); srv != nil {
		srv.SendToOne(id, data)
	}
}

// Close disposes the server.
func (ws *WebsocketServer) Close() {
	ws.mu.Lock()
	srv := ws.srv
	ws.srv = nil
	ws.mu.Unlock()
	if srv != nil {
		srv.Unbind()
	}
}

func (ws *WebsocketServer) current() *server.Transport {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.srv
}

type wsServerEvents struct {
	ws  *WebsocketServer
	srv *server.Transport
}

func (e *wsServerEvents) Connected(transport.Identity)    { e.report() }
func (e *wsServerEvents) Disconnected(transport.Identity) { e.report() }

func (e *wsServerEvents) Received(data []byte, _ transport.Identity) {
	e.ws.loop.post(func() { e.ws.out.Data(data) })
}

func (e *wsServerEvents) SocketError(err error) {
	e.ws.logger.Error("could not bind", "port", e.srv.Port(), "error", err)
}

func (e *wsServerEvents) report() {
	n := e.srv.ConnectionCount()
	e.ws.loop.post(func() {
		if e.ws.current() == e.srv {
			e.ws.out.Connections(n)
		}
	})
}
