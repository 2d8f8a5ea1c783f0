package server

import (
	"sort"
	"sync"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// ConnectionRegistry is the set of live connections of one bound Transport.
//
// Only the processing goroutine adds and removes entries. Any goroutine may
// look entries up or take a snapshot; sends always happen on the snapshot,
// outside the lock.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[transport.ConnID]*Conn
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[transport.ConnID]*Conn),
	}
}

// Add inserts c.
func (r *ConnectionRegistry) Add(c *Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()
}

// Remove erases id and reports whether it was present.
func (r *ConnectionRegistry) Remove(id transport.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Lookup returns the live connection named by id, or nil. Identities that
// were not issued by a server Transport never match.
func (r *ConnectionRegistry) Lookup(id transport.Identity) *Conn {
	cid, ok := id.(transport.ConnID)
	if !ok {
		return nil
	}

	r.mu.RLock()
	c := r.conns[cid]
	r.mu.RUnlock()

	if c == nil || !c.Alive() {
		return nil
	}
	return c
}

// Contains reports whether id is registered, dead or alive.
func (r *ConnectionRegistry) Contains(id transport.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Snapshot returns the registered connections ordered by id.
func (r *ConnectionRegistry) Snapshot() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Clear empties the registry and returns what it held.
func (r *ConnectionRegistry) Clear() []*Conn {
	r.mu.Lock()
	out := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, c)
		delete(r.conns, id)
	}
	r.mu.Unlock()
	return out
}
