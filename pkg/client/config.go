package client

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

// Config holds the configuration for a client Transport.
type Config struct {
	// Name labels the transport in logs and metrics.
	// Default: "client".
	Name string

	// HandshakeTimeout bounds the opening handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// InsecureSkipVerify disables certificate verification for wss URIs.
	// Default: false.
	InsecureSkipVerify bool

	// TLSConfig is the base TLS configuration for wss URIs. It is cloned on
	// every connect.
	// Default: nil (system roots).
	TLSConfig *tls.Config

	// Header is sent with the opening handshake.
	// Default: nil.
	Header http.Header

	// Logger receives transport diagnostics.
	// Default: slog.Default().
	Logger *slog.Logger

	// Counters receives connection and traffic counts.
	// Default: metrics.Nop().
	Counters metrics.Counters
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:             "client",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// Clone returns a shallow copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Header != nil {
		clone.Header = c.Header.Clone()
	}
	return &clone
}

// WithName returns a copy with the name set.
func (c *Config) WithName(name string) *Config {
	clone := c.Clone()
	clone.Name = name
	return clone
}

// WithInsecureSkipVerify returns a copy with certificate verification toggled.
func (c *Config) WithInsecureSkipVerify(skip bool) *Config {
	clone := c.Clone()
	clone.InsecureSkipVerify = skip
	return clone
}

// WithHandshakeTimeout returns a copy with the handshake timeout set.
func (c *Config) WithHandshakeTimeout(d time.Duration) *Config {
	clone := c.Clone()
	clone.HandshakeTimeout = d
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
