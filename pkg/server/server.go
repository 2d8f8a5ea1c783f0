package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/internal/goid"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rabbitcontrol/rcpbridge/pkg/server"

// Listener receives server events. Every method is called on the processing
// goroutine of the Transport.
type Listener interface {
	Connected(id transport.Identity)
	Disconnected(id transport.Identity)
	Received(data []byte, id transport.Identity)
	SocketError(err error)
}

// Transport is a websocket server that funnels every connection into one
// ordered stream of Listener calls.
type Transport struct {
	config   *Config
	listener Listener
	logger   *slog.Logger
	counters metrics.Counters
	tracer   trace.Tracer
	upgrader websocket.Upgrader

	nextID atomic.Uint64

	mu      sync.Mutex
	binding *binding
}

// binding holds everything owned by one Bind call.
type binding struct {
	port      atomic.Uint32
	listening atomic.Bool

	queue    *ActionQueue
	registry *ConnectionRegistry
	srv      *http.Server

	mu       sync.Mutex
	stopping bool
	readers  sync.WaitGroup

	// proc is the goroutine id of the processing goroutine, 0 until it runs.
	proc     atomic.Uint64
	ioDone   chan struct{}
	procDone chan struct{}
	stopOnce sync.Once
}

// New creates an unbound Transport. A nil config uses DefaultConfig().
func New(config *Config, l Listener) *Transport {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.Clone()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = AllowAnyOrigin
	}

	return &Transport{
		config:   config,
		listener: l,
		logger:   logger.With("component", "server"),
		counters: metrics.OrNop(config.Counters),
		tracer:   tracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			Subprotocols:    config.Subprotocols,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Bind starts listening on port without blocking. A listen failure is
// reported once through Listener.SocketError and leaves the Transport not
// listening. Port 0 picks a free port. Binding a bound Transport rebinds it.
func (t *Transport) Bind(port uint16) error {
	t.mu.Lock()
	old := t.binding
	t.binding = nil
	t.mu.Unlock()

	if old != nil {
		t.stop(old)
	}

	b := &binding{
		queue:    NewActionQueue(t.config.QueueCapacity),
		registry: NewConnectionRegistry(),
		ioDone:   make(chan struct{}),
		procDone: make(chan struct{}),
	}
	b.port.Store(uint32(port))
	b.srv = &http.Server{
		Handler:           t.router(b),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(t.logger.Handler(), slog.LevelDebug),
	}

	t.mu.Lock()
	if t.binding != nil {
		t.mu.Unlock()
		return ErrAlreadyBound
	}
	t.binding = b
	t.mu.Unlock()

	go t.processLoop(b)
	go t.serve(b, port)
	return nil
}

// Unbind stops accepting, closes every connection, drains the queue and waits
// for the goroutines of the current binding. Called from a Listener callback
// it returns without waiting for the processing goroutine, which exits once
// the callback returns.
func (t *Transport) Unbind() {
	t.mu.Lock()
	b := t.binding
	t.binding = nil
	t.mu.Unlock()

	if b != nil {
		t.stop(b)
	}
}

// Port returns the bound port, or 0 when not listening.
func (t *Transport) Port() uint16 {
	b := t.current()
	if b == nil || !b.listening.Load() {
		return 0
	}
	return uint16(b.port.Load())
}

// IsListening reports whether the accept loop is running.
func (t *Transport) IsListening() bool {
	b := t.current()
	return b != nil && b.listening.Load()
}

// ConnectionCount returns the number of registered connections.
func (t *Transport) ConnectionCount() int {
	b := t.current()
	if b == nil {
		return 0
	}
	return b.registry.Len()
}

// SendToOne writes data to the connection named by id. Unknown or dead
// connections and empty data are ignored.
func (t *Transport) SendToOne(id transport.Identity, data []byte) {
	b := t.current()
	if b == nil || !b.listening.Load() || len(data) == 0 {
		return
	}

	c := b.registry.Lookup(id)
	if c == nil {
		return
	}
	t.write(c, data)
}

// SendToAll writes data to every live connection except exclude. A nil
// exclude reaches everyone. Empty data is ignored.
func (t *Transport) SendToAll(data []byte, exclude transport.Identity) {
	b := t.current()
	if b == nil || !b.listening.Load() || len(data) == 0 {
		return
	}

	for _, c := range b.registry.Snapshot() {
		if exclude != nil && transport.Identity(c.ID()) == exclude {
			continue
		}
		if !c.Alive() {
			continue
		}
		t.write(c, data)
	}
}

func (t *Transport) current() *binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.binding
}

func (t *Transport) write(c *Conn, data []byte) {
	if err := c.WriteBinary(data); err != nil {
		if !errors.Is(err, ErrConnectionClosed) {
			t.logger.Warn("send failed", append(rcperrors.New("E202").Wrap(err).LogArgs(), "conn", c.ID())...)
		}
		return
	}
	t.counters.BytesSent("server", len(data))
}

func (t *Transport) router(b *binding) http.Handler {
	pattern := t.config.Path
	if pattern == "" || pattern == "/" {
		pattern = "/*"
	}

	r := chi.NewRouter()
	r.Get(pattern, t.handleUpgrade(b))
	return r
}

func (t *Transport) serve(b *binding, port uint16) {
	defer close(b.ioDone)

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(int(port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.reportSocketError(b, rcperrors.New("E201").WithField("port", port).Wrap(err))
		return
	}

	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		b.port.Store(uint32(tcp.Port))
	}
	b.listening.Store(true)
	t.logger.Info("listening", "port", b.port.Load())

	err = b.srv.Serve(ln)
	b.listening.Store(false)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.reportSocketError(b, rcperrors.New("E201").WithField("port", port).Wrap(err))
	}
}

func (t *Transport) reportSocketError(b *binding, err error) {
	if pushErr := b.queue.Push(Action{Kind: ActionSocketError, Err: err}); pushErr != nil {
		t.logger.Error("socket error after unbind", "error", err)
	}
}

func (t *Transport) handleUpgrade(b *binding) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.addReader() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer b.readers.Done()

		ws, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Debug("upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		c := newConn(transport.ConnID(t.nextID.Add(1)), ws, t.config.WriteTimeout)
		if err := b.queue.Push(Action{Kind: ActionSubscribe, Conn: c}); err != nil {
			c.CloseWithCode(websocket.CloseGoingAway, "")
			return
		}
		t.counters.ActionQueued(ActionSubscribe.String())

		t.readLoop(b, c)
	}
}

// readLoop reads frames until the connection fails, then announces the
// disconnect. It runs on the HTTP handler goroutine of the connection.
func (t *Transport) readLoop(b *binding, c *Conn) {
	if t.config.MaxMessageSize > 0 {
		c.ws.SetReadLimit(t.config.MaxMessageSize)
	}

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && c.Alive() {
				t.logger.Debug("read error", "conn", c.ID(), "error", err)
			}
			break
		}

		if mt != websocket.BinaryMessage {
			t.logger.Debug("text frame dropped", "conn", c.ID(), "bytes", len(data))
			continue
		}
		if len(data) == 0 {
			t.logger.Debug("empty frame dropped", "conn", c.ID())
			continue
		}

		t.counters.Alloc(len(data))
		if err := b.queue.Push(Action{Kind: ActionMessage, Conn: c, Data: data}); err != nil {
			t.counters.Free(len(data))
			if errors.Is(err, ErrQueueStopped) {
				break
			}
			t.counters.ActionDropped(ActionMessage.String())
			t.logger.Warn("message dropped", "conn", c.ID(), "bytes", len(data), "error", err)
			continue
		}
		t.counters.ActionQueued(ActionMessage.String())
	}

	c.markClosed()
	if err := b.queue.Push(Action{Kind: ActionUnsubscribe, Conn: c}); err == nil {
		t.counters.ActionQueued(ActionUnsubscribe.String())
	}
}

func (t *Transport) processLoop(b *binding) {
	defer close(b.procDone)
	b.proc.Store(goid.ID())

	for {
		a, ok := b.queue.Pop()
		if !ok {
			return
		}
		t.process(b, a)
	}
}

func (t *Transport) process(b *binding, a Action) {
	attrs := []attribute.KeyValue{attribute.Int("rcp.bytes", len(a.Data))}
	if a.Conn != nil {
		attrs = append(attrs, attribute.String("rcp.conn", a.Conn.ID().String()))
	}
	_, span := t.tracer.Start(context.Background(), "server."+a.Kind.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	switch a.Kind {
	case ActionSubscribe:
		b.registry.Add(a.Conn)
		t.counters.ConnectionOpened("server")
		t.logger.Debug("connected", "conn", a.Conn.ID(), "remote", a.Conn.RemoteAddr())
		t.dispatch(func(l Listener) { l.Connected(a.Conn.ID()) })

	case ActionUnsubscribe:
		if !b.registry.Remove(a.Conn.ID()) {
			return
		}
		t.counters.ConnectionClosed("server")
		t.logger.Debug("disconnected", "conn", a.Conn.ID())
		t.dispatch(func(l Listener) { l.Disconnected(a.Conn.ID()) })

	case ActionMessage:
		defer t.counters.Free(len(a.Data))
		if !b.registry.Contains(a.Conn.ID()) {
			span.SetStatus(codes.Error, "connection not registered")
			return
		}
		t.counters.BytesReceived("server", len(a.Data))
		t.dispatch(func(l Listener) { l.Received(a.Data, a.Conn.ID()) })

	case ActionSocketError:
		b.listening.Store(false)
		span.RecordError(a.Err)
		span.SetStatus(codes.Error, a.Err.Error())
		t.logger.Error("socket error", "error", a.Err)
		t.dispatch(func(l Listener) { l.SocketError(a.Err) })
	}
}

// dispatch runs fn against the listener, recovering panics so a faulty
// callback cannot take the processing goroutine down.
func (t *Transport) dispatch(fn func(Listener)) {
	if t.listener == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("listener panic", "panic", fmt.Sprint(r))
		}
	}()

	fn(t.listener)
}

// stop tears b down and joins its goroutines. Called from a Listener
// callback, that is on the processing goroutine itself, it skips joining
// the processing goroutine.
func (t *Transport) stop(b *binding) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopping = true
		b.mu.Unlock()

		b.srv.Close()
		b.queue.Stop()

		if goid.ID() != b.proc.Load() {
			<-b.procDone
		}

		for _, c := range b.registry.Clear() {
			c.CloseWithCode(websocket.CloseGoingAway, "")
			t.counters.ConnectionClosed("server")
		}

		for _, a := range b.queue.Drain() {
			switch a.Kind {
			case ActionSubscribe:
				a.Conn.CloseWithCode(websocket.CloseGoingAway, "")
			case ActionMessage:
				t.counters.Free(len(a.Data))
			}
		}

		b.readers.Wait()
		<-b.ioDone
		b.listening.Store(false)

		t.logger.Info("unbound", "port", b.port.Load())
	})
}

// addReader registers a connection goroutine unless the binding is stopping.
func (b *binding) addReader() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping {
		return false
	}
	b.readers.Add(1)
	return true
}
