package server

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestActionQueue_FIFOUnderConcurrentPushes(t *testing.T) {
	q := NewActionQueue(0)

	const producers = 8
	const perProducer = 500

	// seqMu makes the push order observable: seq is assigned in the same
	// critical section as the push.
	var seqMu sync.Mutex
	var seq uint64

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seqMu.Lock()
				data := make([]byte, 16)
				binary.BigEndian.PutUint64(data, seq)
				binary.BigEndian.PutUint32(data[8:], uint32(p))
				binary.BigEndian.PutUint32(data[12:], uint32(i))
				seq++
				if err := q.Push(Action{Kind: ActionMessage, Data: data}); err != nil {
					seqMu.Unlock()
					t.Errorf("Push() error: %v", err)
					return
				}
				seqMu.Unlock()
			}
		}(p)
	}

	got := make(chan Action, producers*perProducer)
	go func() {
		for i := 0; i < producers*perProducer; i++ {
			a, ok := q.Pop()
			if !ok {
				return
			}
			got <- a
		}
		close(got)
	}()

	wg.Wait()

	var want uint64
	lastPerProducer := make(map[uint32]int64)
	for a := range got {
		s := binary.BigEndian.Uint64(a.Data)
		if s != want {
			t.Fatalf("popped seq %d, want %d", s, want)
		}
		want++

		p := binary.BigEndian.Uint32(a.Data[8:])
		i := int64(binary.BigEndian.Uint32(a.Data[12:]))
		if last, ok := lastPerProducer[p]; ok && i != last+1 {
			t.Fatalf("producer %d: got %d after %d", p, i, last)
		}
		lastPerProducer[p] = i
	}
	if want != producers*perProducer {
		t.Fatalf("popped %d actions, want %d", want, producers*perProducer)
	}
}

func TestActionQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewActionQueue(0)
	popped := make(chan Action, 1)
	go func() {
		a, _ := q.Pop()
		popped <- a
	}()

	select {
	case <-popped:
		t.Fatal("Pop returned before any Push")
	case <-time.After(30 * time.Millisecond):
	}

	if err := q.Push(Action{Kind: ActionSubscribe}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	select {
	case a := <-popped:
		if a.Kind != ActionSubscribe {
			t.Fatalf("Kind = %v, want subscribe", a.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Pop")
	}
}

func TestActionQueue_CapacityDropsOnlyMessages(t *testing.T) {
	q := NewActionQueue(2)

	for i := 0; i < 2; i++ {
		if err := q.Push(Action{Kind: ActionMessage}); err != nil {
			t.Fatalf("Push(%d) error: %v", i, err)
		}
	}
	if err := q.Push(Action{Kind: ActionMessage}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Push over capacity = %v, want ErrQueueFull", err)
	}
	for _, k := range []ActionKind{ActionSubscribe, ActionUnsubscribe, ActionSocketError} {
		if err := q.Push(Action{Kind: k}); err != nil {
			t.Fatalf("Push(%v) over capacity = %v, want nil", k, err)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
}

func TestActionQueue_StopWakesConsumerAndDrains(t *testing.T) {
	q := NewActionQueue(0)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)

	q.Stop()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("Pop after Stop returned ok=true")
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not wake the consumer")
	}

	if err := q.Push(Action{Kind: ActionSubscribe}); !errors.Is(err, ErrQueueStopped) {
		t.Fatalf("Push after Stop = %v, want ErrQueueStopped", err)
	}
	if !q.Stopped() {
		t.Fatal("Stopped() = false")
	}
}

func TestActionQueue_DrainReturnsPending(t *testing.T) {
	q := NewActionQueue(0)
	q.Push(Action{Kind: ActionSubscribe})
	q.Push(Action{Kind: ActionMessage, Data: []byte{1}})
	q.Stop()

	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on a stopped queue must return the stop sentinel")
	}

	drained := q.Drain()
	if len(drained) != 2 || drained[0].Kind != ActionSubscribe || drained[1].Kind != ActionMessage {
		t.Fatalf("Drain() = %+v", drained)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after Drain = %d", q.Len())
	}
}

func TestActionKind_String(t *testing.T) {
	tests := map[ActionKind]string{
		ActionSubscribe:   "subscribe",
		ActionUnsubscribe: "unsubscribe",
		ActionMessage:     "message",
		ActionSocketError: "socket_error",
		ActionKind(0):     "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}
