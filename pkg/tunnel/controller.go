package tunnel

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// CodePublicTunnelClosed is the close code a public relay uses when it ends a
// session.
const CodePublicTunnelClosed = 4500

// Listener receives tunnel events on client goroutines. A Listener method may
// call back into the Controller, but must not wait on another goroutine that
// is inside Connect, Unbind, SetInterval or Close.
type Listener interface {
	Connected()
	// Disconnected is called once for every Connected, when that connection
	// ends for any reason.
	Disconnected()
	Received(data []byte)
}

// State is the reconnect state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "disconnected"
	}
}

// Controller is a self-reconnecting tunnel client.
type Controller struct {
	config   *Config
	listener Listener
	logger   *slog.Logger
	counters metrics.Counters
	client   *client.Transport

	// opMu serializes Connect, Unbind, SetInterval and retries. It is held
	// across client calls; mu never is, since client callbacks take mu.
	opMu sync.Mutex

	mu       sync.Mutex
	uri      string
	state    State
	interval int
	timer    *time.Timer
	gen      uint64
	closed   bool

	enabled      atomic.Bool
	timerArmed   atomic.Bool
	reportErrors atomic.Bool
}

// New creates a Controller. A nil config uses DefaultConfig().
func New(config *Config, l Listener) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.Clone()
	if config.Unit <= 0 {
		config.Unit = time.Second
	}
	if config.Client == nil {
		config.Client = client.DefaultConfig().WithName("tunnel")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	counters := metrics.OrNop(config.Counters)

	clientConfig := config.Client.Clone()
	if clientConfig.Logger == nil {
		clientConfig.Logger = logger
	}
	if clientConfig.Counters == nil {
		clientConfig.Counters = counters
	}

	c := &Controller{
		config:   config,
		listener: l,
		logger:   logger.With("component", "tunnel"),
		counters: counters,
		interval: config.Interval,
	}
	c.client = client.New(clientConfig, (*events)(c))
	return c
}

// Connect opens uri and keeps reconnecting to it until Unbind. A URI with an
// unsupported scheme is logged and ignored.
func (c *Controller) Connect(uri string) error {
	norm, _, err := transport.NormalizeURI(uri)
	if err != nil {
		c.logger.Warn("connect ignored", append(rcperrors.New("E102").Wrap(err).LogArgs(), "uri", uri)...)
		return nil
	}

	c.opMu.Lock()
	if c.isClosed() {
		c.opMu.Unlock()
		return client.ErrClosed
	}

	// Silence the previous attempt before the state says Connecting, so
	// none of its callbacks can be taken for the new one.
	c.client.Disconnect()

	c.mu.Lock()
	wasOpen := c.state == StateConnected
	c.cancelTimerLocked()
	c.enabled.Store(true)
	c.reportErrors.Store(true)
	c.uri = norm
	c.state = StateConnecting
	c.mu.Unlock()

	err = c.client.Connect(norm, c.config.Subprotocol)
	if err != nil {
		c.setState(StateDisconnected)
	}
	c.opMu.Unlock()

	if wasOpen && c.listener != nil {
		c.listener.Disconnected()
	}
	return err
}

// Unbind stops retrying and closes the connection. It is safe in any state.
func (c *Controller) Unbind() {
	c.opMu.Lock()
	c.enabled.Store(false)
	wasOpen := c.stop()
	c.opMu.Unlock()

	if wasOpen && c.listener != nil {
		c.listener.Disconnected()
	}
}

// Close unbinds and waits for the client goroutines. The Controller cannot
// be reused afterwards.
func (c *Controller) Close() {
	c.Unbind()

	c.opMu.Lock()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.opMu.Unlock()

	c.client.Close()
}

// SetInterval changes the retry interval. A pending retry is re-armed with
// the new interval. n <= 0 cancels any retry and drops the connection.
func (c *Controller) SetInterval(n int) {
	c.opMu.Lock()
	c.mu.Lock()
	c.interval = n
	if n > 0 {
		if c.timer != nil && c.enabled.Load() {
			c.armLocked()
		}
		c.mu.Unlock()
		c.opMu.Unlock()
		return
	}
	c.mu.Unlock()

	wasOpen := c.stop()
	c.opMu.Unlock()
	if wasOpen && c.listener != nil {
		c.listener.Disconnected()
	}
}

// Interval returns the retry interval.
func (c *Controller) Interval() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// URI returns the normalized URI of the last Connect.
func (c *Controller) URI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uri
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enabled reports whether reconnecting is on.
func (c *Controller) Enabled() bool { return c.enabled.Load() }

// TimerArmed reports whether a retry is pending.
func (c *Controller) TimerArmed() bool { return c.timerArmed.Load() }

// Send writes data to the relay. It returns client.ErrNotConnected while the
// tunnel is down.
func (c *Controller) Send(data []byte) error {
	return c.client.Send(data)
}

// IsOpen reports whether the tunnel connection is open.
func (c *Controller) IsOpen() bool {
	return c.client.IsOpen()
}

// stop disconnects and cancels the timer. It reports whether a connection
// was open that no callback has reported closed. opMu must be held.
func (c *Controller) stop() bool {
	c.client.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	wasOpen := c.state == StateConnected
	c.state = StateDisconnected
	return wasOpen
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) cancelTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerArmed.Store(false)
}

func (c *Controller) armLocked() {
	c.cancelTimerLocked()
	gen := c.gen
	delay := time.Duration(c.interval) * c.config.Unit
	c.timer = time.AfterFunc(delay, func() { c.fire(gen) })
	c.timerArmed.Store(true)
	c.state = StateBackoff
	c.logger.Debug("retry armed", "uri", c.uri, "delay", delay)
}

// retryLocked arms a retry if retrying is on, and settles in Disconnected
// otherwise.
func (c *Controller) retryLocked() {
	if c.enabled.Load() && c.interval > 0 && !c.closed {
		c.armLocked()
		return
	}
	c.cancelTimerLocked()
	c.state = StateDisconnected
}

func (c *Controller) fire(gen uint64) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	// Backoff is only entered from the final callback of an attempt, so no
	// stale callback can follow the switch to Connecting.
	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.timerArmed.Store(false)

	if !c.enabled.Load() || c.closed {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	c.counters.Reconnect()
	c.logger.Debug("reconnecting", "uri", c.uri)
	c.state = StateConnecting
	uri := c.uri
	c.mu.Unlock()

	if err := c.client.Connect(uri, ""); err != nil {
		c.setState(StateDisconnected)
	}
}

// diagnose logs tunnel specific failure codes. Handshake rejections are
// reported once per connect cycle.
func (c *Controller) diagnose(code int, failed bool) {
	var errCode string
	switch {
	case failed && code == 400:
		errCode = "E250"
	case failed && code == 412:
		errCode = "E251"
	case failed && code == 423:
		errCode = "E252"
	case !failed && code == CodePublicTunnelClosed && strings.Contains(c.uri, PublicTunnelPath):
		c.logger.Warn("public tunnel closed", append(rcperrors.New("E253").LogArgs(), "uri", c.uri)...)
		return
	default:
		return
	}
	if c.reportErrors.Swap(false) {
		c.logger.Error("tunnel rejected", append(rcperrors.New(errCode).LogArgs(), "uri", c.uri, "status", code)...)
	}
}

// events adapts client callbacks onto the Controller.
type events Controller

func (e *events) Connected() {
	c := (*Controller)(e)
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.reportErrors.Store(true)
	c.mu.Unlock()

	c.logger.Info("tunnel connected", "uri", c.URI())
	if c.listener != nil {
		c.listener.Connected()
	}
}

func (e *events) Failed(code int) {
	c := (*Controller)(e)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return
	}
	c.logger.Debug("connect failed", "uri", c.uri, "code", code)
	c.diagnose(code, true)
	c.retryLocked()
}

func (e *events) Disconnected(code int) {
	c := (*Controller)(e)
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.logger.Info("tunnel disconnected", "uri", c.uri, "code", code)
	c.diagnose(code, false)
	c.retryLocked()
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.Disconnected()
	}
}

func (e *events) Received(data []byte) {
	c := (*Controller)(e)
	if c.listener != nil {
		c.listener.Received(data)
	}
}

func (e *events) ReceivedText(text string) {
	c := (*Controller)(e)
	c.logger.Debug("text frame dropped", "uri", c.URI(), "bytes", len(text))
}
