package server

import (
	"testing"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

type foreignID string

func (f foreignID) String() string { return string(f) }

func TestConnectionRegistry_AddRemoveLookup(t *testing.T) {
	r := NewConnectionRegistry()
	c1 := &Conn{id: 1}
	c2 := &Conn{id: 2}

	r.Add(c1)
	r.Add(c2)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	if got := r.Lookup(transport.ConnID(1)); got != c1 {
		t.Fatalf("Lookup(1) = %v, want c1", got)
	}
	if got := r.Lookup(foreignID("1")); got != nil {
		t.Fatalf("Lookup(foreign) = %v, want nil", got)
	}
	if got := r.Lookup(nil); got != nil {
		t.Fatalf("Lookup(nil) = %v, want nil", got)
	}

	if !r.Remove(1) {
		t.Fatal("Remove(1) = false")
	}
	if r.Remove(1) {
		t.Fatal("second Remove(1) = true")
	}
	if r.Lookup(transport.ConnID(1)) != nil || r.Contains(1) {
		t.Fatal("removed connection still visible")
	}
}

func TestConnectionRegistry_LookupSkipsDead(t *testing.T) {
	r := NewConnectionRegistry()
	c := &Conn{id: 7}
	r.Add(c)
	c.closed.Store(true)

	if got := r.Lookup(transport.ConnID(7)); got != nil {
		t.Fatalf("Lookup(dead) = %v, want nil", got)
	}
	if !r.Contains(7) {
		t.Fatal("dead connection should stay registered until Unsubscribe")
	}
}

func TestConnectionRegistry_SnapshotAndClear(t *testing.T) {
	r := NewConnectionRegistry()
	for _, id := range []transport.ConnID{3, 1, 2} {
		r.Add(&Conn{id: id})
	}

	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].ID() != 1 || snap[2].ID() != 3 {
		t.Fatalf("Snapshot() order = %v", snap)
	}

	// A snapshot is unaffected by later mutation.
	r.Remove(2)
	if len(snap) != 3 {
		t.Fatal("snapshot changed after Remove")
	}

	cleared := r.Clear()
	if len(cleared) != 2 || r.Len() != 0 {
		t.Fatalf("Clear() = %d conns, Len() = %d", len(cleared), r.Len())
	}
}
