package rcptest

import (
	"testing"
	"time"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// WaitFor polls cond until it holds or DefaultTimeout passes.
func WaitFor(t testing.TB, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Bind binds tr on a free port, waits until it accepts and unbinds it when
// the test ends. It returns the bound port.
func Bind(t testing.TB, tr transport.Transporter) uint16 {
	t.Helper()
	if err := tr.Bind(0); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	t.Cleanup(tr.Unbind)
	WaitFor(t, "listener", func() bool { return tr.IsListening() && tr.Port() != 0 })
	return tr.Port()
}
