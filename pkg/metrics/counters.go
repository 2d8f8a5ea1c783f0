// Package metrics provides the counter service shared by every rcpbridge
// transport.
//
// Counters replaces process-wide debug counters with an injectable value:
// each transport is handed a Counters at construction and reports buffer
// ownership, connection churn and traffic to it. Nop discards everything,
// NewLocal keeps in-memory totals, and NewPrometheus additionally exports
// them to a Prometheus registry.
package metrics

import "sync/atomic"

// Counters receives instrumentation events from transports.
type Counters interface {
	// Alloc records that a payload buffer of n bytes changed owner to the bridge.
	Alloc(n int)
	// Free records that a buffer of n bytes was released after processing.
	Free(n int)

	ConnectionOpened(transport string)
	ConnectionClosed(transport string)

	ActionQueued(kind string)
	ActionDropped(kind string)

	BytesSent(transport string, n int)
	BytesReceived(transport string, n int)

	// Reconnect records one timer-driven reconnect attempt.
	Reconnect()

	Snapshot() Snapshot
	Reset()
}

// Snapshot is a point-in-time copy of the local totals.
type Snapshot struct {
	Allocs     uint64
	Frees      uint64
	AllocBytes uint64
	FreeBytes  uint64

	Connections    int64
	ActionsQueued  uint64
	ActionsDropped uint64

	BytesSent     uint64
	BytesReceived uint64
	Reconnects    uint64
}

// Outstanding returns the number of buffers allocated but not yet freed.
func (s Snapshot) Outstanding() int64 {
	return int64(s.Allocs) - int64(s.Frees)
}

// Local keeps totals in memory using atomics.
type Local struct {
	allocs     atomic.Uint64
	frees      atomic.Uint64
	allocBytes atomic.Uint64
	freeBytes  atomic.Uint64

	connections    atomic.Int64
	actionsQueued  atomic.Uint64
	actionsDropped atomic.Uint64

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	reconnects    atomic.Uint64
}

// NewLocal returns an in-memory Counters.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Alloc(n int) {
	l.allocs.Add(1)
	l.allocBytes.Add(uint64(n))
}

func (l *Local) Free(n int) {
	l.frees.Add(1)
	l.freeBytes.Add(uint64(n))
}

func (l *Local) ConnectionOpened(string) { l.connections.Add(1) }
func (l *Local) ConnectionClosed(string) { l.connections.Add(-1) }
func (l *Local) ActionQueued(string)     { l.actionsQueued.Add(1) }
func (l *Local) ActionDropped(string)    { l.actionsDropped.Add(1) }
func (l *Local) Reconnect()              { l.reconnects.Add(1) }

func (l *Local) BytesSent(_ string, n int)     { l.bytesSent.Add(uint64(n)) }
func (l *Local) BytesReceived(_ string, n int) { l.bytesReceived.Add(uint64(n)) }

// Snapshot implements Counters.
func (l *Local) Snapshot() Snapshot {
	return Snapshot{
		Allocs:         l.allocs.Load(),
		Frees:          l.frees.Load(),
		AllocBytes:     l.allocBytes.Load(),
		FreeBytes:      l.freeBytes.Load(),
		Connections:    l.connections.Load(),
		ActionsQueued:  l.actionsQueued.Load(),
		ActionsDropped: l.actionsDropped.Load(),
		BytesSent:      l.bytesSent.Load(),
		BytesReceived:  l.bytesReceived.Load(),
		Reconnects:     l.reconnects.Load(),
	}
}

// Reset zeroes every total. The connection gauge is kept since it tracks
// live state rather than history.
func (l *Local) Reset() {
	l.allocs.Store(0)
	l.frees.Store(0)
	l.allocBytes.Store(0)
	l.freeBytes.Store(0)
	l.actionsQueued.Store(0)
	l.actionsDropped.Store(0)
	l.bytesSent.Store(0)
	l.bytesReceived.Store(0)
	l.reconnects.Store(0)
}

type nop struct{}

// Nop returns a Counters that discards everything.
func Nop() Counters { return nop{} }

func (nop) Alloc(int)                 {}
func (nop) Free(int)                  {}
func (nop) ConnectionOpened(string)   {}
func (nop) ConnectionClosed(string)   {}
func (nop) ActionQueued(string)       {}
func (nop) ActionDropped(string)      {}
func (nop) BytesSent(string, int)     {}
func (nop) BytesReceived(string, int) {}
func (nop) Reconnect()                {}
func (nop) Snapshot() Snapshot        { return Snapshot{} }
func (nop) Reset()                    {}

// OrNop returns c, or Nop() when c is nil.
func OrNop(c Counters) Counters {
	if c == nil {
		return Nop()
	}
	return c
}
