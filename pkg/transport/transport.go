package transport

import "fmt"

// Identity addresses one connection of a Transporter. Values are comparable
// and only meaningful to the Transporter that issued them.
type Identity interface {
	fmt.Stringer
}

// Transporter is the shape the engine expects from any network binding.
type Transporter interface {
	// SendToOne delivers data to the connection named by id. Unknown or dead
	// connections are ignored.
	SendToOne(id Identity, data []byte)

	// SendToAllExcept delivers data to every live connection except exclude.
	// A nil exclude broadcasts to all.
	SendToAllExcept(exclude Identity, data []byte)

	// Bind starts accepting connections on port. Bindings without a listening
	// side treat it as a no-op.
	Bind(port uint16) error

	// Unbind stops the binding and releases its connections.
	Unbind()

	// Port returns the bound port, or 0.
	Port() uint16

	// IsListening reports whether the binding can currently carry traffic.
	IsListening() bool
}

// Receiver is the engine side of the contract. Bindings call Received for
// every inbound packet; id is nil for single-peer bindings.
type Receiver interface {
	Received(from Transporter, data []byte, id Identity)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(from Transporter, data []byte, id Identity)

// Received calls f(from, data, id).
func (f ReceiverFunc) Received(from Transporter, data []byte, id Identity) {
	f(from, data, id)
}

// ConnID is the Identity used by the websocket server.
type ConnID uint64

// String implements fmt.Stringer.
func (c ConnID) String() string {
	return fmt.Sprintf("conn-%d", uint64(c))
}

// SameIdentity reports whether a and b name the same connection. Two nil
// identities are equal.
func SameIdentity(a, b Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}
