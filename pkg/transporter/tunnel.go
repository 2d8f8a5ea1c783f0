package transporter

import (
	"errors"
	"log/slog"

	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
	"github.com/rabbitcontrol/rcpbridge/pkg/tunnel"
)

// Tunnel adapts a tunnel.Controller. The relay is the only peer, so every
// send goes to it and received bytes carry no Identity.
type Tunnel struct {
	ctl      *tunnel.Controller
	receiver transport.Receiver
	observer ConnectionObserver
	logger   *slog.Logger
}

// NewTunnel creates a Tunnel. Call Connect to start it. observer may be nil.
func NewTunnel(config *tunnel.Config, r transport.Receiver, observer ConnectionObserver) *Tunnel {
	if config == nil {
		config = tunnel.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tunnel{
		receiver: r,
		observer: observer,
		logger:   logger.With("component", "transporter.tunnel"),
	}
	t.ctl = tunnel.New(config, (*tunnelEvents)(t))
	return t
}

// Connect opens uri and keeps the tunnel up until Unbind.
func (t *Tunnel) Connect(uri string) error { return t.ctl.Connect(uri) }

// SendToOne sends data to the relay; id is ignored.
func (t *Tunnel) SendToOne(_ transport.Identity, data []byte) { t.send(data) }

// SendToAllExcept sends data to the relay.
func (t *Tunnel) SendToAllExcept(_ transport.Identity, data []byte) { t.send(data) }

// Bind is a no-op: a tunnel does not listen.
func (t *Tunnel) Bind(uint16) error { return nil }

// Unbind stops the tunnel and its retries.
func (t *Tunnel) Unbind() { t.ctl.Unbind() }

// Port is always 0.
func (t *Tunnel) Port() uint16 { return 0 }

// IsListening is always true so engines keep sending through the tunnel
// while it reconnects.
func (t *Tunnel) IsListening() bool { return true }

// Close stops the tunnel and waits for its goroutines.
func (t *Tunnel) Close() { t.ctl.Close() }

// Controller returns the wrapped controller.
func (t *Tunnel) Controller() *tunnel.Controller { return t.ctl }

func (t *Tunnel) send(data []byte) {
	if err := t.ctl.Send(data); err != nil && !errors.Is(err, client.ErrNotConnected) {
		t.logger.Debug("send failed", "uri", t.ctl.URI(), "error", err)
	}
}

type tunnelEvents Tunnel

func (e *tunnelEvents) Connected() {
	if e.observer != nil {
		e.observer.Connected(nil)
	}
}

func (e *tunnelEvents) Disconnected() {
	if e.observer != nil {
		e.observer.Disconnected(nil)
	}
}

func (e *tunnelEvents) Received(data []byte) {
	if e.receiver != nil {
		e.receiver.Received((*Tunnel)(e), data, nil)
	}
}
