package server

import (
	"sync"

	"github.com/eapache/queue"
)

// ActionKind tags an Action.
type ActionKind uint8

const (
	// ActionSubscribe announces a newly accepted connection.
	ActionSubscribe ActionKind = iota + 1
	// ActionUnsubscribe announces a connection that stopped reading.
	ActionUnsubscribe
	// ActionMessage carries one binary frame.
	ActionMessage
	// ActionSocketError carries a listen failure from the accept goroutine.
	ActionSocketError
)

// String returns the span/metric name of the kind.
func (k ActionKind) String() string {
	switch k {
	case ActionSubscribe:
		return "subscribe"
	case ActionUnsubscribe:
		return "unsubscribe"
	case ActionMessage:
		return "message"
	case ActionSocketError:
		return "socket_error"
	default:
		return "unknown"
	}
}

// Action is a connection lifecycle or data event waiting for the processing
// goroutine. Data is owned by the Action once pushed.
type Action struct {
	Kind ActionKind
	Conn *Conn
	Data []byte
	Err  error
}

// ActionQueue is a multi-producer, single-consumer FIFO of Actions.
//
// Push never blocks beyond one short critical section. When the queue holds
// capacity actions, Message actions are refused with ErrQueueFull; lifecycle
// actions are always admitted so the registry can never miss a Subscribe or
// an Unsubscribe.
type ActionQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    *queue.Queue
	capacity int
	stopped  bool
}

// NewActionQueue creates a queue. capacity <= 0 means unbounded.
func NewActionQueue(capacity int) *ActionQueue {
	q := &ActionQueue{
		items:    queue.New(),
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a to the queue and wakes the consumer.
func (q *ActionQueue) Push(a Action) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	if a.Kind == ActionMessage && q.capacity > 0 && q.items.Length() >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items.Add(a)
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// Pop blocks until an action is available or the queue is stopped. ok is
// false once the queue is stopped; actions still queued at that point are
// left for Drain.
func (q *ActionQueue) Pop() (a Action, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return Action{}, false
	}
	return q.items.Remove().(Action), true
}

// Stop wakes the consumer and refuses further pushes.
func (q *ActionQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Stopped reports whether Stop was called.
func (q *ActionQueue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Drain removes and returns every queued action.
func (q *ActionQueue) Drain() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Action, 0, q.items.Length())
	for q.items.Length() > 0 {
		out = append(out, q.items.Remove().(Action))
	}
	return out
}

// Len returns the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
