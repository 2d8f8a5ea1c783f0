package host

import (
	"log/slog"
	"sync"

	"github.com/rabbitcontrol/rcpbridge/pkg/engine"
	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/transporter"
	"github.com/rabbitcontrol/rcpbridge/pkg/tunnel"
)

// ParameterServerConfig configures a ParameterServer.
type ParameterServerConfig struct {
	// Server configures the websocket server transporter.
	Server *server.Config
	// Tunnel configures the tunnel transporter.
	Tunnel *tunnel.Config
	// Engine configures the relay behind all transporters.
	Engine *engine.Config
	// Raw replaces the websocket server with a byte pipe to the host: data
	// goes out through Outlet.Data and comes in through Push.
	Raw    bool
	Logger *slog.Logger
}

// ParameterServer is the server side of rcp: every transporter it holds
// feeds one engine.
type ParameterServer struct {
	loop   *Loop
	out    Outlet
	config ParameterServerConfig
	logger *slog.Logger
	relay  *engine.Relay

	mu  sync.Mutex
	srv *transporter.Server
	tun *transporter.Tunnel
	raw *transporter.Host
}

// NewParameterServer creates a ParameterServer. It does not listen until
// Listen is called, unless it is raw.
func NewParameterServer(loop *Loop, out Outlet, config *ParameterServerConfig) *ParameterServer {
	if config == nil {
		config = &ParameterServerConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engineConfig := config.Engine
	if engineConfig == nil {
		engineConfig = engine.DefaultConfig()
	}
	if engineConfig.Logger == nil {
		engineConfig = engineConfig.WithLogger(logger)
	}

	ps := &ParameterServer{
		loop:   loop,
		out:    out,
		config: *config,
		logger: logger.With("component", "parameter_server"),
		relay:  engine.New(engineConfig),
	}
	if config.Raw {
		ps.raw = transporter.NewHost(loopSink{loop: loop, out: out}, ps.relay)
		ps.relay.Add(ps.raw)
	}
	return ps
}

// Listen serves websockets on port. Port 0 disposes the server transporter.
// Listening again on the current port does nothing. Raw servers ignore
// Listen.
func (ps *ParameterServer) Listen(port int) error {
	p, err := checkPort(port)
	if err != nil {
		ps.logger.Error("listen ignored", "port", port, "error", err)
		return err
	}
	if ps.config.Raw {
		return nil
	}

	ps.mu.Lock()
	old := ps.srv
	if old != nil && old.IsListening() && old.Port() == p {
		ps.mu.Unlock()
		return nil
	}
	ps.srv = nil
	ps.mu.Unlock()

	if old != nil {
		ps.relay.Remove(old)
		old.Unbind()
	}

	if p == 0 {
		ps.out.Connections(0)
		ps.out.Port(0)
		return nil
	}

	config := ps.config.Server
	if config == nil {
		config = server.DefaultConfig()
	}
	if config.Logger == nil {
		config = config.WithLogger(ps.config.Logger)
	}

	counter := &connCounter{loop: ps.loop, out: ps.out}
	srv := transporter.NewServer(config, ps.relay, counter)
	counter.count = srv.ConnectionCount
	counter.current = func() bool { return ps.server() == srv }

	ps.mu.Lock()
	ps.srv = srv
	ps.mu.Unlock()

	ps.relay.Add(srv)
	if err := srv.Bind(p); err != nil {
		ps.logger.Error("transporter not created", "port", p, "error", err)
		return err
	}
	ps.out.Connections(0)
	ps.out.Port(port)
	return nil
}

// Port returns the listening port, or 0.
func (ps *ParameterServer) Port() int {
	if srv := ps.server(); srv != nil {
		return int(srv.Port())
	}
	return 0
}

// ConnectionCount returns the number of connected websocket clients.
func (ps *ParameterServer) ConnectionCount() int {
	if srv := ps.server(); srv != nil {
		return srv.ConnectionCount()
	}
	return 0
}

// Push hands raw inbound bytes to the engine. It does nothing unless the
// server is raw.
func (ps *ParameterServer) Push(data []byte) {
	if ps.raw == nil {
		ps.logger.Warn("no raw transporter", "bytes", len(data))
		return
	}
	ps.raw.Push(data)
}

// SetTunnelURI connects the tunnel to uri, creating it on first use.
func (ps *ParameterServer) SetTunnelURI(uri string) error {
	return ps.tunnel().Connect(uri)
}

// TunnelURI returns the tunnel URI, or "" if there is no tunnel.
func (ps *ParameterServer) TunnelURI() string {
	ps.mu.Lock()
	tun := ps.tun
	ps.mu.Unlock()
	if tun == nil {
		return ""
	}
	return tun.Controller().URI()
}

// SetTunnelInterval sets the tunnel retry interval in seconds. Before the
// tunnel exists the value is kept for its creation.
func (ps *ParameterServer) SetTunnelInterval(seconds int) {
	ps.mu.Lock()
	tun := ps.tun
	if tun == nil {
		if ps.config.Tunnel == nil {
			ps.config.Tunnel = tunnel.DefaultConfig()
		}
		ps.config.Tunnel = ps.config.Tunnel.WithInterval(seconds)
	}
	ps.mu.Unlock()

	if tun != nil {
		tun.Controller().SetInterval(seconds)
	}
}

// TunnelInterval returns the tunnel retry interval in seconds.
func (ps *ParameterServer) TunnelInterval() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.tun != nil {
		return ps.tun.Controller().Interval()
	}
	if ps.config.Tunnel != nil {
		return ps.config.Tunnel.Interval
	}
	return tunnel.DefaultInterval
}

// CloseTunnel stops the tunnel. A later SetTunnelURI restarts it.
func (ps *ParameterServer) CloseTunnel() {
	ps.mu.Lock()
	tun := ps.tun
	ps.mu.Unlock()
	if tun != nil {
		tun.Unbind()
	}
}

// Relay returns the engine behind the transporters.
func (ps *ParameterServer) Relay() *engine.Relay { return ps.relay }

// Close releases every transporter and stops the engine.
func (ps *ParameterServer) Close() {
	ps.mu.Lock()
	srv, tun, raw := ps.srv, ps.tun, ps.raw
	ps.srv, ps.tun = nil, nil
	ps.mu.Unlock()

	if srv != nil {
		srv.Unbind()
	}
	if tun != nil {
		tun.Close()
	}
	if raw != nil {
		raw.Unbind()
	}
	ps.relay.Close()
}

func (ps *ParameterServer) server() *transporter.Server {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.srv
}

func (ps *ParameterServer) tunnel() *transporter.Tunnel {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.tun != nil {
		return ps.tun
	}

	config := ps.config.Tunnel
	if config == nil {
		config = tunnel.DefaultConfig()
	}
	if config.Logger == nil {
		config = config.WithLogger(ps.config.Logger)
	}
	ps.tun = transporter.NewTunnel(config, ps.relay, nil)
	ps.relay.Add(ps.tun)
	return ps.tun
}
