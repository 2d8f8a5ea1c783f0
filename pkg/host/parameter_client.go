package host

import (
	"log/slog"

	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/engine"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
	"github.com/rabbitcontrol/rcpbridge/pkg/transporter"
)

// ParameterClient is the client side of rcp. Bytes from the server come
// out of Outlet.Data, bytes pushed by the host go to the server.
type ParameterClient struct {
	loop   *Loop
	out    Outlet
	logger *slog.Logger
	relay  *engine.Relay
	conn   *transporter.Client
	raw    *transporter.Host
}

// NewParameterClient creates an unconnected ParameterClient. A nil config
// uses client.DefaultConfig().
func NewParameterClient(loop *Loop, out Outlet, config *client.Config) *ParameterClient {
	if config == nil {
		config = client.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pc := &ParameterClient{
		loop:   loop,
		out:    out,
		logger: logger.With("component", "parameter_client"),
		relay:  engine.New(engine.DefaultConfig().WithLogger(logger)),
	}
	pc.conn = transporter.NewClient(config, pc.relay, (*clientStatus)(pc))
	pc.raw = transporter.NewHost(loopSink{loop: loop, out: out}, pc.relay)
	pc.relay.Add(pc.conn)
	pc.relay.Add(pc.raw)
	return pc
}

// Open connects to address. http and https are rewritten to ws and wss;
// other schemes are ignored.
func (pc *ParameterClient) Open(address string) error {
	return pc.conn.Connect(address, "")
}

// Close disconnects. The outlet reports the disconnect.
func (pc *ParameterClient) Close() {
	open := pc.conn.IsListening()
	pc.conn.Disconnect()
	if open {
		pc.out.Connected(false)
	}
}

// IsOpen reports whether the connection is open.
func (pc *ParameterClient) IsOpen() bool { return pc.conn.IsListening() }

// Push sends raw bytes to the server.
func (pc *ParameterClient) Push(data []byte) { pc.raw.Push(data) }

// Dispose closes the connection for good and stops the engine.
func (pc *ParameterClient) Dispose() {
	pc.conn.Close()
	pc.raw.Unbind()
	pc.relay.Close()
}

type clientStatus ParameterClient

func (s *clientStatus) Connected(transport.Identity) {
	s.loop.post(func() { s.out.Connected(true) })
}

func (s *clientStatus) Disconnected(transport.Identity) {
	s.loop.post(func() { s.out.Connected(false) })
}
