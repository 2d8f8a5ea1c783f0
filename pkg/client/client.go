// Package client provides the websocket client transport of rcpbridge.
//
// One Transport holds at most one connection at a time. Whether that
// connection is plain or TLS is decided per Connect from the URI scheme;
// both go through the same gorilla/websocket Dialer.
//
// Listener callbacks run on the goroutine of the connection they belong to.
// Callers that need single-goroutine semantics marshal them themselves (see
// pkg/host.Loop).
//
// Connect and Disconnect wait for a callback that is running on another
// goroutine, so they must not be called while holding a lock that a Listener
// method acquires.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/internal/goid"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// CodeAbnormal is reported when a connection fails or drops without an HTTP
// status or a close frame to report.
const CodeAbnormal = websocket.CloseAbnormalClosure

// Listener receives client events.
type Listener interface {
	Connected()
	// Failed reports a connect attempt that never opened: the HTTP status of
	// a rejected handshake, or CodeAbnormal.
	Failed(code int)
	// Disconnected reports the close code of an open connection that ended.
	Disconnected(code int)
	Received(data []byte)
	ReceivedText(text string)
}

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Transport is a reconnectable websocket client.
type Transport struct {
	config   *Config
	listener Listener
	logger   *slog.Logger
	counters metrics.Counters

	mu     sync.Mutex
	sess   *session
	closed bool
	wg     sync.WaitGroup
}

// session is one connect attempt and, if it opens, its connection.
type session struct {
	uri    string
	secure bool

	ctx    context.Context
	cancel context.CancelFunc

	// detached is set by Disconnect; no callback starts afterwards.
	detached atomic.Bool
	state    atomic.Int32

	// emitMu is read-held for the length of every callback. Disconnect
	// write-locks it to wait out a callback in progress.
	emitMu sync.RWMutex
	// runner is the goroutine id of run, 0 until it starts.
	runner atomic.Uint64

	mu sync.Mutex
	ws *websocket.Conn

	writeMu sync.Mutex
}

// New creates a Transport. A nil config uses DefaultConfig().
func New(config *Config, l Listener) *Transport {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.Clone()
	if config.Name == "" {
		config.Name = "client"
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		config:   config,
		listener: l,
		logger:   logger.With("component", config.Name),
		counters: metrics.OrNop(config.Counters),
	}
}

// Connect tears down any current connection and opens uri in the background.
// http and https URIs are rewritten to ws and wss. A URI with any other
// scheme is logged and ignored: nil is returned and nothing changes.
func (t *Transport) Connect(uri, subprotocol string) error {
	norm, secure, err := transport.NormalizeURI(uri)
	if err != nil {
		t.logger.Warn("connect ignored", append(rcperrors.New("E102").Wrap(err).LogArgs(), "uri", uri)...)
		return nil
	}

	t.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		uri:    norm,
		secure: secure,
		ctx:    ctx,
		cancel: cancel,
	}
	s.state.Store(int32(StateConnecting))

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return ErrClosed
	}
	t.sess = s
	t.wg.Add(1)
	t.mu.Unlock()

	t.logger.Debug("connecting", "uri", norm, "secure", secure)
	go t.run(s, subprotocol)
	return nil
}

// Disconnect detaches the listener from the current connection and closes it.
// No callback runs after Disconnect returns: a callback in progress on
// another goroutine is waited for. Called from a callback of the connection
// itself, it does not wait. Close errors are logged.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	s := t.sess
	t.sess = nil
	t.mu.Unlock()

	if s == nil {
		return
	}

	s.detached.Store(true)
	s.cancel()

	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws != nil {
		t.closeSession(s, ws)
	}

	if goid.ID() != s.runner.Load() {
		s.emitMu.Lock()
		s.emitMu.Unlock()
	}
}

func (t *Transport) closeSession(s *session, ws *websocket.Conn) {
	if State(s.state.Swap(int32(StateClosed))) == StateOpen {
		err := ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "close"),
			time.Now().Add(time.Second),
		)
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			t.logger.Debug("closing failed", "uri", s.uri, "error", err)
		}
	}
	if err := ws.Close(); err != nil {
		t.logger.Debug("closing failed", "uri", s.uri, "error", err)
	}
}

// Close disconnects and waits for every goroutine the Transport started.
// Connect fails with ErrClosed afterwards. Close must not be called from a
// Listener callback.
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.Disconnect()
	t.wg.Wait()
}

// Send writes data as one binary frame. It does nothing and returns
// ErrNotConnected when no connection is open. Empty data is not sent.
func (t *Transport) Send(data []byte) error {
	return t.write(websocket.BinaryMessage, data)
}

// SendText writes text as one text frame. Empty text is not sent.
func (t *Transport) SendText(text string) error {
	return t.write(websocket.TextMessage, []byte(text))
}

// IsOpen reports whether the current connection is open.
func (t *Transport) IsOpen() bool {
	s := t.current()
	return s != nil && State(s.state.Load()) == StateOpen
}

// State returns the state of the current connection.
func (t *Transport) State() State {
	s := t.current()
	if s == nil {
		return StateClosed
	}
	return State(s.state.Load())
}

// URI returns the normalized URI of the current connection, or "".
func (t *Transport) URI() string {
	if s := t.current(); s != nil {
		return s.uri
	}
	return ""
}

// Secure reports whether the current connection uses TLS.
func (t *Transport) Secure() bool {
	s := t.current()
	return s != nil && s.secure
}

func (t *Transport) current() *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess
}

func (t *Transport) write(messageType int, data []byte) error {
	s := t.current()
	if s == nil || State(s.state.Load()) != StateOpen {
		return ErrNotConnected
	}

	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if t.config.WriteTimeout > 0 {
		ws.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	if err := ws.WriteMessage(messageType, data); err != nil {
		t.logger.Warn("send failed", append(rcperrors.New("E202").Wrap(err).LogArgs(), "uri", s.uri)...)
		return err
	}
	t.counters.BytesSent(t.config.Name, len(data))
	return nil
}

func (t *Transport) dialer(secure bool, subprotocol string) *websocket.Dialer {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.config.HandshakeTimeout,
		ReadBufferSize:   t.config.ReadBufferSize,
		WriteBufferSize:  t.config.WriteBufferSize,
	}
	if subprotocol != "" {
		d.Subprotocols = []string{subprotocol}
	}
	if secure {
		var tlsConfig *tls.Config
		if t.config.TLSConfig != nil {
			tlsConfig = t.config.TLSConfig.Clone()
		} else {
			tlsConfig = &tls.Config{}
		}
		tlsConfig.InsecureSkipVerify = t.config.InsecureSkipVerify
		d.TLSClientConfig = tlsConfig
	}
	return d
}

// run dials s and then reads from it until it fails.
func (t *Transport) run(s *session, subprotocol string) {
	defer t.wg.Done()
	s.runner.Store(goid.ID())

	ws, resp, err := t.dialer(s.secure, subprotocol).DialContext(s.ctx, s.uri, t.config.Header)
	if err != nil {
		s.state.Store(int32(StateClosed))
		code := CodeAbnormal
		if resp != nil && resp.StatusCode != 0 {
			code = resp.StatusCode
		}
		if s.ctx.Err() == nil {
			t.logger.Debug("connect failed", "uri", s.uri, "code", code, "error", err)
		}
		t.emit(s, func(l Listener) { l.Failed(code) })
		return
	}

	s.mu.Lock()
	if s.detached.Load() {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.ws = ws
	s.state.Store(int32(StateOpen))
	s.mu.Unlock()

	t.counters.ConnectionOpened(t.config.Name)
	defer t.counters.ConnectionClosed(t.config.Name)

	t.logger.Debug("connected", "uri", s.uri, "subprotocol", ws.Subprotocol())
	t.emit(s, func(l Listener) { l.Connected() })

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			code := CodeAbnormal
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			s.state.Store(int32(StateClosed))
			ws.Close()
			t.logger.Debug("disconnected", "uri", s.uri, "code", code)
			t.emit(s, func(l Listener) { l.Disconnected(code) })
			return
		}

		if len(data) == 0 {
			t.logger.Debug("empty frame dropped", "uri", s.uri)
			continue
		}
		t.counters.BytesReceived(t.config.Name, len(data))
		switch mt {
		case websocket.BinaryMessage:
			t.emit(s, func(l Listener) { l.Received(data) })
		case websocket.TextMessage:
			text := string(data)
			t.emit(s, func(l Listener) { l.ReceivedText(text) })
		}
	}
}

func (t *Transport) emit(s *session, fn func(Listener)) {
	if t.listener == nil {
		return
	}
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.detached.Load() {
		return
	}
	fn(t.listener)
}
