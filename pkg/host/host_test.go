package host

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/rcptest"
	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/tunnel"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func expectConnections(t *testing.T, out *rcptest.Outlet, want int) {
	t.Helper()
	if e := out.Expect(t, rcptest.EventConnections); e.Code != want {
		t.Fatalf("Connections = %d, want %d", e.Code, want)
	}
}

func serverConfig() *server.Config {
	return server.DefaultConfig().WithHost("127.0.0.1")
}

func TestLoop_RunsInOrder(t *testing.T) {
	loop := startLoop(t)
	got := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		if err := loop.Dispatch(func() { got <- i }); err != nil {
			t.Fatalf("Dispatch() error: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		select {
		case v := <-got:
			if v != i {
				t.Fatalf("function %d ran as %d", i, v)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for dispatched function")
		}
	}
}

func TestLoop_FullAndStopped(t *testing.T) {
	loop := NewLoop(1, nil)
	if err := loop.Dispatch(func() {}); err != nil {
		t.Fatalf("first Dispatch() error: %v", err)
	}
	if err := loop.Dispatch(func() {}); !errors.Is(err, ErrLoopFull) {
		t.Fatalf("Dispatch on full loop = %v, want ErrLoopFull", err)
	}

	loop.Stop()
	loop.Stop()
	if err := loop.Dispatch(func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("Dispatch after Stop = %v, want ErrLoopStopped", err)
	}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run after Stop = %v, want nil", err)
	}
}

func TestLoop_RunReturnsContextError(t *testing.T) {
	loop := NewLoop(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestLoop_PanicIsContained(t *testing.T) {
	loop := startLoop(t)
	done := make(chan struct{})
	loop.Dispatch(func() { panic("boom") })
	loop.Dispatch(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop died after panic")
	}
}

func TestParameterServer_ListenRules(t *testing.T) {
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	ps := NewParameterServer(loop, out, &ParameterServerConfig{Server: serverConfig()})
	t.Cleanup(ps.Close)

	for _, port := range []int{-1, 65536} {
		if err := ps.Listen(port); rcperrors.Code(err) != "E101" {
			t.Fatalf("Listen(%d) = %v, want E101", port, err)
		}
	}
	out.ExpectNone(t, 20*time.Millisecond)

	port := freePort(t)
	if err := ps.Listen(port); err != nil {
		t.Fatalf("Listen(%d) error: %v", port, err)
	}
	expectConnections(t, out, 0)
	if e := out.Expect(t, rcptest.EventPort); e.Code != port {
		t.Fatalf("Port = %d, want %d", e.Code, port)
	}
	rcptest.WaitFor(t, "listening", func() bool { return ps.Port() == port })

	// Same port: nothing happens.
	ps.Listen(port)
	out.ExpectNone(t, 20*time.Millisecond)

	ps.Listen(0)
	expectConnections(t, out, 0)
	out.Expect(t, rcptest.EventPort)
	if ps.Port() != 0 {
		t.Fatalf("Port() = %d after Listen(0)", ps.Port())
	}
}

func TestParameterServer_RelaysBetweenClients(t *testing.T) {
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	ps := NewParameterServer(loop, out, &ParameterServerConfig{Server: serverConfig()})
	t.Cleanup(ps.Close)

	port := freePort(t)
	ps.Listen(port)
	expectConnections(t, out, 0)
	out.Expect(t, rcptest.EventPort)
	rcptest.WaitFor(t, "listening", func() bool { return ps.Port() == port })

	a := rcptest.Dial(t, rcptest.WSURL(uint16(port), "/"))
	expectConnections(t, out, 1)
	b := rcptest.Dial(t, rcptest.WSURL(uint16(port), "/"))
	expectConnections(t, out, 2)
	if ps.ConnectionCount() != 2 {
		t.Fatalf("ConnectionCount() = %d, want 2", ps.ConnectionCount())
	}

	a.WriteMessage(websocket.BinaryMessage, []byte{0x04, 0x01})
	if got := rcptest.ReadBinary(t, b); !bytes.Equal(got, []byte{0x04, 0x01}) {
		t.Fatalf("b got %v", got)
	}
	rcptest.ExpectNoMessage(t, a, 50*time.Millisecond)

	b.Close()
	expectConnections(t, out, 1)
}

func TestParameterServer_RawWithTunnel(t *testing.T) {
	relay := rcptest.NewWSServer(t, nil)
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	ps := NewParameterServer(loop, out, &ParameterServerConfig{
		Raw:    true,
		Tunnel: tunnel.DefaultConfig().WithUnit(10 * time.Millisecond),
	})
	t.Cleanup(ps.Close)

	if err := ps.Listen(freePort(t)); err != nil {
		t.Fatalf("Listen on raw server = %v, want nil", err)
	}
	if ps.Port() != 0 {
		t.Fatalf("raw Port() = %d, want 0", ps.Port())
	}

	ps.SetTunnelInterval(5)
	if ps.TunnelInterval() != 5 {
		t.Fatalf("TunnelInterval() = %d before tunnel, want 5", ps.TunnelInterval())
	}

	ps.SetTunnelURI(relay.URL("/rcp"))
	ws := relay.Accept(t)
	if ps.TunnelURI() != relay.URL("/rcp") {
		t.Fatalf("TunnelURI() = %q, want %q", ps.TunnelURI(), relay.URL("/rcp"))
	}
	if ps.TunnelInterval() != 5 {
		t.Fatalf("TunnelInterval() = %d, want 5", ps.TunnelInterval())
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
	if e := out.Expect(t, rcptest.EventData); !bytes.Equal(e.Data, []byte{1, 2, 3}) {
		t.Fatalf("outlet Data = %v", e.Data)
	}

	rcptest.WaitFor(t, "tunnel open", func() bool { return ps.tunnel().Controller().IsOpen() })
	ps.Push([]byte{9, 8})
	if got := rcptest.ReadBinary(t, ws); !bytes.Equal(got, []byte{9, 8}) {
		t.Fatalf("relay got %v", got)
	}

	ps.SetTunnelInterval(1)
	if ps.TunnelInterval() != 1 {
		t.Fatalf("TunnelInterval() = %d, want 1", ps.TunnelInterval())
	}

	ps.CloseTunnel()
	ws.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("tunnel still open after CloseTunnel")
	}
}

func TestParameterServer_PushWithoutRaw(t *testing.T) {
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	ps := NewParameterServer(loop, out, nil)
	t.Cleanup(ps.Close)

	ps.Push([]byte{1})
	out.ExpectNone(t, 20*time.Millisecond)
	if ps.TunnelURI() != "" || ps.TunnelInterval() != tunnel.DefaultInterval {
		t.Fatalf("TunnelURI() = %q, TunnelInterval() = %d", ps.TunnelURI(), ps.TunnelInterval())
	}
}

func TestParameterClient(t *testing.T) {
	srv := rcptest.NewWSServer(t, nil)
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	pc := NewParameterClient(loop, out, nil)
	t.Cleanup(pc.Dispose)

	if err := pc.Open("ftp://nowhere"); err != nil {
		t.Fatalf("Open(ftp) = %v, want nil", err)
	}
	out.ExpectNone(t, 20*time.Millisecond)

	pc.Open(srv.URL("/"))
	ws := srv.Accept(t)
	out.Expect(t, rcptest.EventConnected)
	if !pc.IsOpen() {
		t.Fatal("IsOpen() = false after connect")
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{0x10})
	if e := out.Expect(t, rcptest.EventData); !bytes.Equal(e.Data, []byte{0x10}) {
		t.Fatalf("outlet Data = %v", e.Data)
	}

	pc.Push([]byte{0x20})
	if got := rcptest.ReadBinary(t, ws); !bytes.Equal(got, []byte{0x20}) {
		t.Fatalf("server got %v", got)
	}

	pc.Close()
	out.Expect(t, rcptest.EventDisconnected)
	if pc.IsOpen() {
		t.Fatal("IsOpen() = true after Close")
	}
}

func TestWebsocketServer(t *testing.T) {
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	ws := NewWebsocketServer(loop, out, serverConfig())
	t.Cleanup(ws.Close)

	if err := ws.Listen(70000); rcperrors.Code(err) != "E101" {
		t.Fatalf("Listen(70000) = %v, want E101", err)
	}

	port := freePort(t)
	if err := ws.Listen(port); err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	rcptest.WaitFor(t, "listening", func() bool { return ws.Port() == port })

	a := rcptest.Dial(t, rcptest.WSURL(uint16(port), "/"))
	expectConnections(t, out, 1)
	b := rcptest.Dial(t, rcptest.WSURL(uint16(port), "/"))
	expectConnections(t, out, 2)

	a.WriteMessage(websocket.BinaryMessage, []byte{7})
	if e := out.Expect(t, rcptest.EventData); !bytes.Equal(e.Data, []byte{7}) {
		t.Fatalf("outlet Data = %v", e.Data)
	}
	// No relaying between clients.
	rcptest.ExpectNoMessage(t, b, 50*time.Millisecond)

	ws.Send([]byte{1})
	for _, c := range []*websocket.Conn{a, b} {
		if got := rcptest.ReadBinary(t, c); !bytes.Equal(got, []byte{1}) {
			t.Fatalf("client got %v", got)
		}
	}

	a.Close()
	expectConnections(t, out, 1)

	ws.Listen(0)
	expectConnections(t, out, 0)
	if ws.Port() != 0 || ws.ConnectionCount() != 0 {
		t.Fatalf("Port() = %d, ConnectionCount() = %d after Listen(0)", ws.Port(), ws.ConnectionCount())
	}
}

func TestWebsocketClient(t *testing.T) {
	srv := rcptest.NewWSServer(t, nil)
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	wc := NewWebsocketClient(loop, out, client.DefaultConfig())
	t.Cleanup(wc.Dispose)

	if err := wc.Send([]byte{1}); err != nil {
		t.Fatalf("Send while closed = %v, want nil", err)
	}

	wc.Open(srv.URL("/"), "rcp")
	ws := srv.Accept(t)
	out.Expect(t, rcptest.EventConnected)
	if ws.Subprotocol() != "rcp" {
		t.Fatalf("subprotocol = %q, want rcp", ws.Subprotocol())
	}

	ws.WriteMessage(websocket.BinaryMessage, []byte{2})
	if e := out.Expect(t, rcptest.EventData); !bytes.Equal(e.Data, []byte{2}) {
		t.Fatalf("outlet Data = %v", e.Data)
	}
	ws.WriteMessage(websocket.TextMessage, []byte("hi"))
	if e := out.Expect(t, rcptest.EventReceivedText); e.Text != "hi" {
		t.Fatalf("outlet Text = %q", e.Text)
	}

	wc.SendText("text")
	ws.SetReadDeadline(time.Now().Add(time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil || mt != websocket.TextMessage || string(data) != "text" {
		t.Fatalf("server read = %d %q %v, want text frame", mt, data, err)
	}

	wc.Close()
	out.Expect(t, rcptest.EventDisconnected)
}

func TestWebsocketClient_FailedReportsDisconnected(t *testing.T) {
	srv := rcptest.NewWSServer(t, nil)
	loop := startLoop(t)
	out := rcptest.NewOutlet()
	wc := NewWebsocketClient(loop, out, nil)
	t.Cleanup(wc.Dispose)

	wc.Open(srv.URL("/?status=403"), "")
	out.Expect(t, rcptest.EventDisconnected)
}
