package server

import (
	"errors"
	"testing"

	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrQueueFull", ErrQueueFull, "server: action queue full"},
		{"ErrQueueStopped", ErrQueueStopped, "server: action queue stopped"},
		{"ErrConnectionClosed", ErrConnectionClosed, "server: connection closed"},
		{"ErrAlreadyBound", ErrAlreadyBound, "server: already bound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
		})
	}
}

func TestConnError(t *testing.T) {
	cause := errors.New("broken pipe")

	err := NewConnError(transport.ConnID(7), "write", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if got, want := err.Error(), "server: "+transport.ConnID(7).String()+": write: broken pipe"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if got, want := NewConnError(0, "bind", cause).Error(), "server: bind: broken pipe"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
