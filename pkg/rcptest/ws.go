package rcptest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSURL returns the websocket URL of a local server transport.
func WSURL(port uint16, path string) string {
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("ws://127.0.0.1:%d%s", port, path)
}

// Dial opens a websocket connection and closes it when the test ends.
func Dial(t testing.TB, url string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: DefaultTimeout}
	ws, resp, err := dialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s failed: %v (status=%d)", url, err, status)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// ReadBinary reads the next frame and fails unless it is binary.
func ReadBinary(t testing.TB, ws *websocket.Conn) []byte {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(DefaultTimeout))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", mt)
	}
	return data
}

// ExpectNoMessage fails if a frame arrives on ws within d.
func ExpectNoMessage(t testing.TB, ws *websocket.Conn, d time.Duration) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(d))
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Fatalf("unexpected message %v", data)
	}
}

// WSServer is an httptest websocket endpoint. Handler runs once per
// accepted connection on its own goroutine.
type WSServer struct {
	*httptest.Server
	Conns chan *websocket.Conn

	// Requests counts handshake attempts, rejected ones included.
	Requests atomic.Int64
}

// NewWSServer starts a websocket endpoint. If handler is nil every accepted
// connection is published on Conns and left open. A request carrying a
// ?status=N query is rejected with HTTP status N.
func NewWSServer(t testing.TB, handler func(ws *websocket.Conn)) *WSServer {
	t.Helper()
	return newWSServer(t, handler, false)
}

// NewWSServerTLS is NewWSServer over TLS with a self-signed certificate.
func NewWSServerTLS(t testing.TB, handler func(ws *websocket.Conn)) *WSServer {
	t.Helper()
	return newWSServer(t, handler, true)
}

func newWSServer(t testing.TB, handler func(ws *websocket.Conn), secure bool) *WSServer {
	s := &WSServer{Conns: make(chan *websocket.Conn, 16)}
	upgrader := websocket.Upgrader{
		CheckOrigin:  func(*http.Request) bool { return true },
		Subprotocols: []string{"rcp"},
	}

	s.Server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Requests.Add(1)
		if status := r.URL.Query().Get("status"); status != "" {
			var code int
			fmt.Sscanf(status, "%d", &code)
			http.Error(w, "rejected", code)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if handler != nil {
			handler(ws)
			return
		}
		s.Conns <- ws
	}))
	if secure {
		s.StartTLS()
	} else {
		s.Start()
	}
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// (or wss://) URL of the endpoint with path appended.
func (s *WSServer) URL(path string) string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + path
}

// Accept waits for the next connection published on Conns.
func (s *WSServer) Accept(t testing.TB) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-s.Conns:
		t.Cleanup(func() { _ = ws.Close() })
		return ws
	case <-time.After(DefaultTimeout):
		t.Fatal("timeout waiting for connection")
		return nil
	}
}
