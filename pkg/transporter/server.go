package transporter

import (
	"log/slog"

	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Server adapts a server.Transport.
type Server struct {
	srv      *server.Transport
	receiver transport.Receiver
	observer ConnectionObserver
	logger   *slog.Logger
}

// NewServer creates an unbound Server. observer may be nil.
func NewServer(config *server.Config, r transport.Receiver, observer ConnectionObserver) *Server {
	if config == nil {
		config = server.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		receiver: r,
		observer: observer,
		logger:   logger.With("component", "transporter.server"),
	}
	s.srv = server.New(config, (*serverEvents)(s))
	return s
}

// SendToOne writes data to the connection named by id.
func (s *Server) SendToOne(id transport.Identity, data []byte) {
	s.srv.SendToOne(id, data)
}

// SendToAllExcept writes data to every connection but exclude.
func (s *Server) SendToAllExcept(exclude transport.Identity, data []byte) {
	s.srv.SendToAll(data, exclude)
}

// Bind starts listening on port.
func (s *Server) Bind(port uint16) error { return s.srv.Bind(port) }

// Unbind stops listening and closes every connection.
func (s *Server) Unbind() { s.srv.Unbind() }

// Port returns the bound port, or 0.
func (s *Server) Port() uint16 { return s.srv.Port() }

// IsListening reports whether the server accepts connections.
func (s *Server) IsListening() bool { return s.srv.IsListening() }

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int { return s.srv.ConnectionCount() }

// Transport returns the wrapped server transport.
func (s *Server) Transport() *server.Transport { return s.srv }

type serverEvents Server

func (e *serverEvents) Connected(id transport.Identity) {
	if e.observer != nil {
		e.observer.Connected(id)
	}
}

func (e *serverEvents) Disconnected(id transport.Identity) {
	if e.observer != nil {
		e.observer.Disconnected(id)
	}
}

func (e *serverEvents) Received(data []byte, id transport.Identity) {
	if e.receiver != nil {
		e.receiver.Received((*Server)(e), data, id)
	}
}

func (e *serverEvents) SocketError(err error) {
	e.logger.Warn("server transporter not listening", "error", err)
}
