package rcptest

import (
	"fmt"
	"testing"
	"time"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// DefaultTimeout bounds every Expect/Next wait.
var DefaultTimeout = 2 * time.Second

// EventKind names a recorded callback.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventReceived     EventKind = "received"
	EventReceivedText EventKind = "received_text"
	EventFailed       EventKind = "failed"
	EventSocketError  EventKind = "socket_error"
	EventData         EventKind = "data"
	EventConnections  EventKind = "connections"
	EventPort         EventKind = "port"
)

// Event is one recorded callback.
type Event struct {
	Kind EventKind
	ID   transport.Identity
	Data []byte
	Text string
	Code int
	Err  error
}

func (e Event) String() string {
	return fmt.Sprintf("%s(id=%v bytes=%d text=%q code=%d err=%v)", e.Kind, e.ID, len(e.Data), e.Text, e.Code, e.Err)
}

// Recorder is a buffered stream of Events.
type Recorder struct {
	Events chan Event
}

func newRecorder() Recorder {
	return Recorder{Events: make(chan Event, 4096)}
}

func (r Recorder) record(e Event) {
	select {
	case r.Events <- e:
	default:
		panic("rcptest: event buffer full")
	}
}

// Next returns the next event or fails the test after DefaultTimeout.
func (r Recorder) Next(t testing.TB) Event {
	t.Helper()
	select {
	case e := <-r.Events:
		return e
	case <-time.After(DefaultTimeout):
		t.Fatalf("timeout waiting for event")
		return Event{}
	}
}

// Expect returns the next event and fails unless it has the given kind.
func (r Recorder) Expect(t testing.TB, kind EventKind) Event {
	t.Helper()
	e := r.Next(t)
	if e.Kind != kind {
		t.Fatalf("event = %v, want %s", e, kind)
	}
	return e
}

// ExpectNone fails if any event arrives within d.
func (r Recorder) ExpectNone(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.Events:
		t.Fatalf("unexpected event %v", e)
	case <-time.After(d):
	}
}

// Len returns the number of buffered events.
func (r Recorder) Len() int {
	return len(r.Events)
}
