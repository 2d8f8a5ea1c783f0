package tunnel

import (
	"log/slog"
	"time"

	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

// DefaultInterval is the number of seconds between reconnect attempts.
const DefaultInterval = 2

// PublicTunnelPath marks URIs of the shared public relay, whose sessions are
// closed by the relay after a while.
const PublicTunnelPath = "/public/rcpserver/connect"

// Config holds the configuration for a Controller.
type Config struct {
	// Interval is the delay between reconnect attempts, in Unit.
	// A value <= 0 disables reconnecting.
	// Default: 2.
	Interval int

	// Unit is the length of one Interval step.
	// Default: time.Second.
	Unit time.Duration

	// Subprotocol is offered on explicit Connect calls. Timer driven
	// reconnects offer none.
	// Default: "".
	Subprotocol string

	// Client configures the underlying client transport.
	// Default: client.DefaultConfig() named "tunnel".
	Client *client.Config

	// Logger receives tunnel diagnostics.
	// Default: slog.Default().
	Logger *slog.Logger

	// Counters receives reconnect counts. It is also handed to the client
	// transport when Client.Counters is unset.
	// Default: metrics.Nop().
	Counters metrics.Counters
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Unit:     time.Second,
		Client:   client.DefaultConfig().WithName("tunnel"),
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Client != nil {
		clone.Client = c.Client.Clone()
	}
	return &clone
}

// WithInterval returns a copy with the interval set.
func (c *Config) WithInterval(n int) *Config {
	clone := c.Clone()
	clone.Interval = n
	return clone
}

// WithUnit returns a copy with the interval unit set.
func (c *Config) WithUnit(d time.Duration) *Config {
	clone := c.Clone()
	clone.Unit = d
	return clone
}

// WithSubprotocol returns a copy with the subprotocol set.
func (c *Config) WithSubprotocol(p string) *Config {
	clone := c.Clone()
	clone.Subprotocol = p
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
