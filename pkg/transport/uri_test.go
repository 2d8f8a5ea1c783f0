package transport

import (
	"errors"
	"testing"
)

func TestNormalizeURI(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		wantSecure bool
		wantErr    error
	}{
		{in: "ws://localhost:10000", want: "ws://localhost:10000"},
		{in: "wss://host/path", want: "wss://host/path", wantSecure: true},
		{in: "http://host:8080/x", want: "ws://host:8080/x"},
		{in: "https://host/path", want: "wss://host/path", wantSecure: true},
		{in: "HTTPS://host/path", want: "wss://host/path", wantSecure: true},
		{in: "  ws://host  ", want: "ws://host"},
		{in: "https://rabbithole.rabbitcontrol.cc/public/rcpserver/connect?key=abc", want: "wss://rabbithole.rabbitcontrol.cc/public/rcpserver/connect?key=abc", wantSecure: true},
		{in: "ftp://host", wantErr: ErrUnsupportedScheme},
		{in: "host:1234", wantErr: ErrUnsupportedScheme},
		{in: "ws://", wantErr: ErrUnsupportedScheme},
		{in: "", wantErr: ErrEmptyURI},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, secure, err := NormalizeURI(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizeURI(%q) err = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURI(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURI(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if secure != tt.wantSecure {
				t.Errorf("NormalizeURI(%q) secure = %v, want %v", tt.in, secure, tt.wantSecure)
			}
		})
	}
}

func TestNormalizeURI_HTTPSEqualsWSS(t *testing.T) {
	a, sa, errA := NormalizeURI("https://host/path")
	b, sb, errB := NormalizeURI("wss://host/path")
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a != b || sa != sb {
		t.Errorf("https -> (%q,%v), wss -> (%q,%v); want equal", a, sa, b, sb)
	}
}

func TestSameIdentity(t *testing.T) {
	if !SameIdentity(nil, nil) {
		t.Error("SameIdentity(nil, nil) = false")
	}
	if SameIdentity(ConnID(1), nil) || SameIdentity(nil, ConnID(1)) {
		t.Error("nil must not match a connection")
	}
	if !SameIdentity(ConnID(3), ConnID(3)) {
		t.Error("SameIdentity(3, 3) = false")
	}
	if SameIdentity(ConnID(3), ConnID(4)) {
		t.Error("SameIdentity(3, 4) = true")
	}
	if ConnID(7).String() != "conn-7" {
		t.Errorf("ConnID(7).String() = %q", ConnID(7).String())
	}
}
