package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPort is the port a rabbitcontrol parameter server listens on unless
// told otherwise.
const DefaultPort = 10000

// Config holds the configuration for a server Transport.
type Config struct {
	// Host is the interface to listen on.
	// Default: "" (all interfaces).
	Host string

	// Path is the HTTP path the websocket endpoint is mounted on.
	// "/" accepts upgrades on any path.
	// Default: "/".
	Path string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// MaxMessageSize limits the size of an inbound frame. 0 means no limit.
	// Default: 0.
	MaxMessageSize int64

	// WriteTimeout bounds a single frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// QueueCapacity bounds the number of pending Message actions.
	// Connection lifecycle actions are never dropped.
	// Default: 1024.
	QueueCapacity int

	// Subprotocols are offered during the websocket handshake.
	// Default: nil.
	Subprotocols []string

	// CheckOrigin is called to validate the request origin.
	// rabbitcontrol clients are usually served from another origin.
	// Default: AllowAnyOrigin.
	CheckOrigin func(r *http.Request) bool

	// Logger receives transport diagnostics.
	// Default: slog.Default().
	Logger *slog.Logger

	// Counters receives buffer and connection counts.
	// Default: metrics.Nop().
	Counters metrics.Counters

	// Tracer starts one span per processed action.
	// Default: the global otel tracer provider.
	Tracer trace.Tracer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:            "/",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteTimeout:    10 * time.Second,
		QueueCapacity:   1024,
		CheckOrigin:     AllowAnyOrigin,
	}
}

// Clone returns a shallow copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Subprotocols = append([]string(nil), c.Subprotocols...)
	return &clone
}

// WithHost returns a copy with the listen host set.
func (c *Config) WithHost(host string) *Config {
	clone := c.Clone()
	clone.Host = host
	return clone
}

// WithPath returns a copy with the endpoint path set.
func (c *Config) WithPath(path string) *Config {
	clone := c.Clone()
	clone.Path = path
	return clone
}

// WithQueueCapacity returns a copy with the queue capacity set.
func (c *Config) WithQueueCapacity(n int) *Config {
	clone := c.Clone()
	clone.QueueCapacity = n
	return clone
}

// WithWriteTimeout returns a copy with the write timeout set.
func (c *Config) WithWriteTimeout(d time.Duration) *Config {
	clone := c.Clone()
	clone.WriteTimeout = d
	return clone
}

// WithLogger returns a copy with the logger set.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	clone := c.Clone()
	clone.Logger = l
	return clone
}

// WithCounters returns a copy with the counter service set.
func (c *Config) WithCounters(counters metrics.Counters) *Config {
	clone := c.Clone()
	clone.Counters = counters
	return clone
}

// WithTracer returns a copy with the tracer set.
func (c *Config) WithTracer(t trace.Tracer) *Config {
	clone := c.Clone()
	clone.Tracer = t
	return clone
}

// AllowAnyOrigin accepts every websocket origin.
func AllowAnyOrigin(*http.Request) bool { return true }

// SameOriginCheck validates that the WebSocket request origin matches the host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}

	return originURL.Host == host
}
