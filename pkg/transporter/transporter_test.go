package transporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/rcptest"
	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/tunnel"
)

func TestServer_ForwardsToReceiver(t *testing.T) {
	engine := rcptest.NewEngine()
	observer := rcptest.NewServerListener()
	s := NewServer(server.DefaultConfig().WithHost("127.0.0.1"), engine, observer)
	port := rcptest.Bind(t, s)

	a := rcptest.Dial(t, rcptest.WSURL(port, "/"))
	idA := observer.Expect(t, rcptest.EventConnected).ID
	b := rcptest.Dial(t, rcptest.WSURL(port, "/"))
	observer.Expect(t, rcptest.EventConnected)

	if s.ConnectionCount() != 2 {
		t.Fatalf("ConnectionCount() = %d, want 2", s.ConnectionCount())
	}

	a.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
	e := engine.Expect(t, rcptest.EventReceived)
	if e.ID != idA || !bytes.Equal(e.Data, []byte{1, 2}) {
		t.Fatalf("engine got %v, want data from %v", e, idA)
	}

	s.SendToAllExcept(idA, []byte{3})
	if got := rcptest.ReadBinary(t, b); !bytes.Equal(got, []byte{3}) {
		t.Fatalf("b got %v", got)
	}
	rcptest.ExpectNoMessage(t, a, 50*time.Millisecond)

	s.SendToOne(idA, []byte{4})
	a2 := rcptest.ReadBinary(t, a)
	if !bytes.Equal(a2, []byte{4}) {
		t.Fatalf("a got %v", a2)
	}

	b.Close()
	observer.Expect(t, rcptest.EventDisconnected)
}

func TestTunnel_Adapter(t *testing.T) {
	relay := rcptest.NewWSServer(t, nil)
	engine := rcptest.NewEngine()
	observer := rcptest.NewServerListener()

	tn := NewTunnel(tunnel.DefaultConfig().WithUnit(10*time.Millisecond), engine, observer)
	t.Cleanup(tn.Close)

	if err := tn.Bind(1234); err != nil {
		t.Fatalf("Bind() = %v, want nil", err)
	}
	if tn.Port() != 0 || !tn.IsListening() {
		t.Fatalf("Port() = %d, IsListening() = %v, want 0 and true", tn.Port(), tn.IsListening())
	}

	// Sends before the tunnel is up are dropped silently.
	tn.SendToOne(nil, []byte{9})

	tn.Connect(relay.URL("/"))
	ws := relay.Accept(t)
	if e := observer.Expect(t, rcptest.EventConnected); e.ID != nil {
		t.Fatalf("Connected id = %v, want nil", e.ID)
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{7, 7})
	e := engine.Expect(t, rcptest.EventReceived)
	if e.ID != nil || !bytes.Equal(e.Data, []byte{7, 7}) {
		t.Fatalf("engine got %v", e)
	}

	tn.SendToAllExcept(nil, []byte{1})
	tn.SendToOne(nil, []byte{2})
	for _, want := range []byte{1, 2} {
		if got := rcptest.ReadBinary(t, ws); !bytes.Equal(got, []byte{want}) {
			t.Fatalf("relay got %v, want [%d]", got, want)
		}
	}

	tn.Unbind()
	observer.Expect(t, rcptest.EventDisconnected)
	if tn.Controller().Enabled() {
		t.Fatal("tunnel still enabled after Unbind")
	}
	if !tn.IsListening() {
		t.Fatal("IsListening() = false after Unbind")
	}
}

func TestClient_Adapter(t *testing.T) {
	srv := rcptest.NewWSServer(t, nil)
	engine := rcptest.NewEngine()
	observer := rcptest.NewServerListener()

	c := NewClient(client.DefaultConfig(), engine, observer)
	t.Cleanup(c.Close)

	if c.IsListening() {
		t.Fatal("IsListening() = true before Connect")
	}

	c.Connect(srv.URL("/"), "")
	ws := srv.Accept(t)
	observer.Expect(t, rcptest.EventConnected)
	if !c.IsListening() || c.Port() != 0 {
		t.Fatalf("IsListening() = %v, Port() = %d", c.IsListening(), c.Port())
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{5})
	if e := engine.Expect(t, rcptest.EventReceived); e.ID != nil || !bytes.Equal(e.Data, []byte{5}) {
		t.Fatalf("engine got %v", e)
	}

	c.SendToAllExcept(nil, []byte{6})
	if got := rcptest.ReadBinary(t, ws); !bytes.Equal(got, []byte{6}) {
		t.Fatalf("server got %v", got)
	}

	ws.Close()
	observer.Expect(t, rcptest.EventDisconnected)
	rcptest.WaitFor(t, "client closed", func() bool { return !c.IsListening() })
}

func TestHost_Adapter(t *testing.T) {
	engine := rcptest.NewEngine()
	out := rcptest.NewOutlet()
	h := NewHost(out, engine)

	h.Push([]byte{1})
	if e := engine.Expect(t, rcptest.EventReceived); e.ID != nil || !bytes.Equal(e.Data, []byte{1}) {
		t.Fatalf("engine got %v", e)
	}

	h.SendToOne(nil, []byte{2})
	h.SendToAllExcept(nil, []byte{3})
	for _, want := range []byte{2, 3} {
		if e := out.Expect(t, rcptest.EventData); !bytes.Equal(e.Data, []byte{want}) {
			t.Fatalf("outlet got %v, want [%d]", e.Data, want)
		}
	}

	h.Unbind()
	if h.IsListening() {
		t.Fatal("IsListening() = true after Unbind")
	}
	h.Push([]byte{4})
	h.SendToOne(nil, []byte{5})
	engine.ExpectNone(t, 20*time.Millisecond)
	out.ExpectNone(t, 20*time.Millisecond)

	h.Bind(0)
	h.Push([]byte{6})
	engine.Expect(t, rcptest.EventReceived)
}

func TestHost_DropsEmptyPackets(t *testing.T) {
	engine := rcptest.NewEngine()
	out := rcptest.NewOutlet()
	h := NewHost(out, engine)

	h.Push(nil)
	h.Push([]byte{})
	h.SendToOne(nil, nil)
	h.SendToAllExcept(nil, []byte{})
	engine.ExpectNone(t, 20*time.Millisecond)
	out.ExpectNone(t, 20*time.Millisecond)

	h.Push([]byte{1})
	engine.Expect(t, rcptest.EventReceived)
}
