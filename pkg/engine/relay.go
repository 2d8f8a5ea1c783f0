// Package engine contains Relay, the reference engine that sits above the
// rcpbridge transporters.
//
// Relay does not parse packets. It serializes everything the transporters
// deliver onto one loop goroutine, optionally hands each packet to a
// Handler, and echoes it to every other peer it knows. This is enough to
// join parameter servers, tunnels and host pipes into one bus, and it is
// the engine the bundled CLI runs.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

var (
	// ErrQueueFull is returned when the loop queue is at capacity.
	ErrQueueFull = errors.New("engine: queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: relay closed")
)

// Packet is one payload delivered by a transporter.
type Packet struct {
	From transport.Transporter
	Data []byte
	// ID names the sending connection, or nil for single-peer transporters.
	ID transport.Identity
}

// Handler inspects packets on the loop goroutine.
type Handler func(p Packet)

// Relay is a transport.Receiver that fans packets out across transporters.
type Relay struct {
	config   *Config
	logger   *slog.Logger
	counters metrics.Counters

	mu           sync.RWMutex
	transporters []transport.Transporter

	packets    chan Packet
	dispatchCh chan func()
	done       chan struct{}
	loopDone   chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
}

var _ transport.Receiver = (*Relay)(nil)

// New creates a Relay and starts its loop. A nil config uses
// DefaultConfig().
func New(config *Config) *Relay {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.Clone()
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Relay{
		config:     config,
		logger:     logger.With("component", "relay"),
		counters:   metrics.OrNop(config.Counters),
		packets:    make(chan Packet, config.QueueSize),
		dispatchCh: make(chan func(), config.QueueSize),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Add registers t. Adding the same transporter twice has no effect.
func (r *Relay) Add(t transport.Transporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.transporters, t) {
		return
	}
	r.transporters = append(r.transporters, t)
}

// Remove unregisters t and reports whether it was registered. It does not
// unbind t.
func (r *Relay) Remove(t transport.Transporter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.transporters, t)
	if i < 0 {
		return false
	}
	r.transporters = slices.Delete(r.transporters, i, i+1)
	return true
}

// Transporters returns the registered transporters in the order they were
// added.
func (r *Relay) Transporters() []transport.Transporter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.transporters)
}

// Received queues a packet for the loop. It never blocks: a full queue
// drops the packet. Empty packets are dropped.
func (r *Relay) Received(from transport.Transporter, data []byte, id transport.Identity) {
	if r.closed.Load() {
		return
	}
	if len(data) == 0 {
		r.logger.Debug("empty packet dropped", "conn", id)
		return
	}
	select {
	case r.packets <- Packet{From: from, Data: data, ID: id}:
	case <-r.done:
	default:
		r.counters.ActionDropped("packet")
		r.logger.Warn("packet dropped", "bytes", len(data), "conn", id, "error", ErrQueueFull)
	}
}

// Dispatch runs fn on the loop goroutine.
func (r *Relay) Dispatch(fn func()) error {
	if r.closed.Load() {
		return ErrClosed
	}
	select {
	case r.dispatchCh <- fn:
		return nil
	case <-r.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Broadcast sends data to every peer of every listening transporter.
func (r *Relay) Broadcast(data []byte) {
	for _, t := range r.Transporters() {
		if t.IsListening() {
			t.SendToAllExcept(nil, data)
		}
	}
}

// Close stops the loop and waits for it. Queued packets are discarded.
// Transporters are left as they are.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
	<-r.loopDone
}

func (r *Relay) loop() {
	defer close(r.loopDone)
	for {
		select {
		case p := <-r.packets:
			r.handle(p)
		case fn := <-r.dispatchCh:
			r.run(fn)
		case <-r.done:
			return
		}
	}
}

func (r *Relay) handle(p Packet) {
	if h := r.config.Handler; h != nil {
		r.run(func() { h(p) })
	}
	if r.config.Echo {
		r.echo(p)
	}
}

// echo sends p to everyone but its sender. A single-peer transporter never
// gets its own packets back.
func (r *Relay) echo(p Packet) {
	for _, t := range r.Transporters() {
		if !t.IsListening() {
			continue
		}
		if t == p.From {
			if p.ID != nil {
				t.SendToAllExcept(p.ID, p.Data)
			}
			continue
		}
		t.SendToAllExcept(nil, p.Data)
	}
}

func (r *Relay) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("relay handler panic", "panic", fmt.Sprint(rec))
		}
	}()
	fn()
}
