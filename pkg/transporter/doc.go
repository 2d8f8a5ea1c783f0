// Package transporter adapts the rcpbridge transports to the engine facing
// transport.Transporter contract.
//
// Each adapter owns one transport and forwards the bytes it receives to a
// transport.Receiver, naming itself as the origin:
//
//	Server  websocket server, one Identity per connection
//	Tunnel  self-reconnecting relay client, Identity nil
//	Client  plain websocket client, Identity nil
//	Host    in-process byte pipe to the host, Identity nil
//
// Adapters know nothing about each other. Any number of them can feed the
// same engine.
package transporter

import "github.com/rabbitcontrol/rcpbridge/pkg/transport"

// ConnectionObserver is told when a peer connects or disconnects. Adapters
// with a single peer pass a nil id.
type ConnectionObserver interface {
	Connected(id transport.Identity)
	Disconnected(id transport.Identity)
}

// Sink receives outbound bytes of the Host adapter.
type Sink interface {
	Data(data []byte)
}

var (
	_ transport.Transporter = (*Server)(nil)
	_ transport.Transporter = (*Tunnel)(nil)
	_ transport.Transporter = (*Client)(nil)
	_ transport.Transporter = (*Host)(nil)
)
