package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/codec"
	"github.com/rabbitcontrol/rcpbridge/pkg/server"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
	"github.com/rabbitcontrol/rcpbridge/pkg/tunnel"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "rcpbridge.json"

	// DefaultPort is the rcp parameter server port.
	DefaultPort = server.DefaultPort

	// DefaultMetricsNamespace prefixes every exported metric.
	DefaultMetricsNamespace = "rcpbridge"
)

// Config represents the complete rcpbridge.json configuration.
type Config struct {
	// Server contains the websocket server configuration.
	Server ServerConfig `json:"server"`

	// Tunnel contains the tunnel configuration.
	Tunnel TunnelConfig `json:"tunnel"`

	// Client contains the websocket client configuration.
	Client ClientConfig `json:"client"`

	// Host contains the raw host pipe configuration.
	Host HostConfig `json:"host"`

	// Metrics contains the admin endpoint configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains websocket server settings.
type ServerConfig struct {
	// Port is the listen port. 0 disables the server.
	Port int `json:"port"`

	// Host is the listen host. Empty listens on all interfaces.
	Host string `json:"host,omitempty"`

	// Path is the websocket endpoint path.
	Path string `json:"path,omitempty"`

	ReadBufferSize  int `json:"readBufferSize,omitempty"`
	WriteBufferSize int `json:"writeBufferSize,omitempty"`

	// QueueCapacity bounds pending messages across all connections.
	QueueCapacity int `json:"queueCapacity,omitempty"`

	// WriteTimeout is a duration string such as "10s".
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// MaxMessageSize limits inbound frames. 0 means no limit.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`
}

// TunnelConfig contains tunnel settings.
type TunnelConfig struct {
	// URI is the relay to connect to. Empty disables the tunnel.
	URI string `json:"uri,omitempty"`

	// Interval is the retry interval in seconds. 0 disables retrying.
	Interval int `json:"interval"`

	Subprotocol        string `json:"subprotocol,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
}

// ClientConfig contains websocket client settings.
type ClientConfig struct {
	// HandshakeTimeout is a duration string such as "10s".
	HandshakeTimeout   string `json:"handshakeTimeout,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
}

// HostConfig contains raw host pipe settings.
type HostConfig struct {
	// Raw replaces the websocket server with stdio.
	Raw bool `json:"raw,omitempty"`

	// Framing is none, slip or size.
	Framing string `json:"framing,omitempty"`

	// BufferSize is the largest packet the decoders accept.
	BufferSize int `json:"bufferSize,omitempty"`
}

// MetricsConfig contains admin endpoint settings.
type MetricsConfig struct {
	// Address serves /metrics, /healthz and /debug/counters. Empty disables
	// the admin endpoint.
	Address string `json:"address,omitempty"`

	// Namespace prefixes every exported metric.
	Namespace string `json:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			Path:            "/",
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			QueueCapacity:   1024,
			WriteTimeout:    "10s",
		},
		Tunnel: TunnelConfig{
			Interval: tunnel.DefaultInterval,
		},
		Client: ClientConfig{
			HandshakeTimeout: "10s",
		},
		Host: HostConfig{
			Framing:    string(codec.FramingNone),
			BufferSize: codec.DefaultBufferSize,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for rcpbridge.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. Fields missing
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E140").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'rcpbridge config init' to write one, or pass settings as flags")
		}
		return nil, errors.New("E140").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E141").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E144").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E144").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Path == "" {
		c.Server.Path = d.Server.Path
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Client.HandshakeTimeout == "" {
		c.Client.HandshakeTimeout = d.Client.HandshakeTimeout
	}
	if c.Host.Framing == "" {
		c.Host.Framing = d.Host.Framing
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E101").WithField("port", strconv.Itoa(c.Server.Port))
	}
	for name, size := range map[string]int{
		"server.readBufferSize":  c.Server.ReadBufferSize,
		"server.writeBufferSize": c.Server.WriteBufferSize,
		"server.queueCapacity":   c.Server.QueueCapacity,
		"host.bufferSize":        c.Host.BufferSize,
	} {
		if size <= 0 {
			return errors.New("E103").WithField("field", name)
		}
	}
	if _, err := codec.ParseFraming(c.Host.Framing); err != nil {
		return err
	}
	if c.Tunnel.URI != "" {
		if _, _, err := transport.NormalizeURI(c.Tunnel.URI); err != nil {
			return errors.New("E102").WithField("uri", c.Tunnel.URI).Wrap(err)
		}
	}
	for name, value := range map[string]string{
		"server.writeTimeout":     c.Server.WriteTimeout,
		"client.handshakeTimeout": c.Client.HandshakeTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.New("E141").WithField("field", name).Wrap(err)
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New("E143").WithField("format", c.Log.Format)
	}
	return nil
}

// ServerOptions returns the server transport configuration.
func (c *Config) ServerOptions() *server.Config {
	cfg := server.DefaultConfig().
		WithHost(c.Server.Host).
		WithPath(c.Server.Path).
		WithQueueCapacity(c.Server.QueueCapacity)
	cfg.ReadBufferSize = c.Server.ReadBufferSize
	cfg.WriteBufferSize = c.Server.WriteBufferSize
	cfg.MaxMessageSize = c.Server.MaxMessageSize
	if d, err := time.ParseDuration(c.Server.WriteTimeout); err == nil {
		cfg.WriteTimeout = d
	}
	return cfg
}

// ClientOptions returns the client transport configuration.
func (c *Config) ClientOptions() *client.Config {
	cfg := client.DefaultConfig().WithInsecureSkipVerify(c.Client.InsecureSkipVerify)
	if d, err := time.ParseDuration(c.Client.HandshakeTimeout); err == nil {
		cfg = cfg.WithHandshakeTimeout(d)
	}
	return cfg
}

// TunnelOptions returns the tunnel configuration.
func (c *Config) TunnelOptions() *tunnel.Config {
	cfg := tunnel.DefaultConfig().
		WithInterval(c.Tunnel.Interval).
		WithSubprotocol(c.Tunnel.Subprotocol)
	cfg.Client = c.ClientOptions().
		WithName("tunnel").
		WithInsecureSkipVerify(c.Tunnel.InsecureSkipVerify || c.Client.InsecureSkipVerify)
	return cfg
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.New("E142").WithField("level", level)
}

// NewLogger builds the logger described by the log section. Invalid
// settings fall back to info level text output.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
