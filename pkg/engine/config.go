package engine

import (
	"log/slog"

	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

// Config holds the configuration for a Relay.
type Config struct {
	// Echo forwards every received packet to all other peers on all
	// transporters.
	// Default: true.
	Echo bool

	// QueueSize bounds packets and dispatched functions waiting for the loop.
	// Default: 256.
	QueueSize int

	// Handler, if set, sees every packet on the loop goroutine before it is
	// echoed.
	// Default: nil.
	Handler Handler

	// Logger is the relay logger.
	// Default: slog.Default().
	Logger *slog.Logger

	// Counters records dropped packets.
	// Default: metrics.Nop().
	Counters metrics.Counters
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Echo:      true,
		QueueSize: 256,
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithEcho returns a copy with echoing switched on or off.
func (c *Config) WithEcho(echo bool) *Config {
	clone := c.Clone()
	clone.Echo = echo
	return clone
}

// WithHandler returns a copy with the packet handler set.
func (c *Config) WithHandler(h Handler) *Config {
	clone := c.Clone()
	clone.Handler = h
	return clone
}

// WithQueueSize returns a copy with the queue size set.
func (c *Config) WithQueueSize(n int) *Config {
	clone := c.Clone()
	clone.QueueSize = n
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
