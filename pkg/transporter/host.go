package transporter

import (
	"sync/atomic"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Host is a byte pipe between the engine and the host application. Outbound
// packets go to the Sink; the host injects inbound packets with Push.
type Host struct {
	sink     Sink
	receiver transport.Receiver
	bound    atomic.Bool
}

// NewHost creates a Host writing to sink.
func NewHost(sink Sink, r transport.Receiver) *Host {
	h := &Host{sink: sink, receiver: r}
	h.bound.Store(true)
	return h
}

// Push hands one inbound packet to the receiver. Empty packets and packets
// pushed after Unbind are dropped.
func (h *Host) Push(data []byte) {
	if !h.bound.Load() || h.receiver == nil || len(data) == 0 {
		return
	}
	h.receiver.Received(h, data, nil)
}

// SendToOne writes data to the sink. The host is a single peer, so id is
// ignored.
func (h *Host) SendToOne(_ transport.Identity, data []byte) { h.out(data) }

// SendToAllExcept writes data to the sink.
func (h *Host) SendToAllExcept(_ transport.Identity, data []byte) { h.out(data) }

// Bind reopens the pipe. The port is ignored.
func (h *Host) Bind(uint16) error {
	h.bound.Store(true)
	return nil
}

// Unbind closes the pipe in both directions.
func (h *Host) Unbind() { h.bound.Store(false) }

// Port is always 0.
func (h *Host) Port() uint16 { return 0 }

// IsListening reports whether the pipe is open.
func (h *Host) IsListening() bool { return h.bound.Load() }

func (h *Host) out(data []byte) {
	if h.sink == nil || !h.bound.Load() || len(data) == 0 {
		return
	}
	h.sink.Data(data)
}
