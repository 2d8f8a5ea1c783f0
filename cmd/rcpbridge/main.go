package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rabbitcontrol/rcpbridge/internal/config"
	"github.com/rabbitcontrol/rcpbridge/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool
}

func main() {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rcpbridge",
		Short: "Websocket transports for rabbitcontrol",
		Long: `rcpbridge moves rcp packets between websocket clients, tunnel
relays and local byte streams.

  • Parameter server on a websocket port (default 10000)
  • Self-reconnecting tunnel to a relay
  • Raw stdio transporter with SLIP or size-prefix framing
  • Prometheus metrics and debug counters`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to "+config.ConfigFileName+" (default: ./"+config.ConfigFileName+" if present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")
	flags.BoolVar(&opts.debug, "debug", false, "Shorthand for --log-level=debug")

	rootCmd.AddCommand(
		serveCmd(opts),
		connectCmd(opts),
		slipCmd(),
		sizePrefixCmd(),
		configCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// load reads the configuration and applies the logging flags.
func (o *globalOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger installs the configured logger as the slog default. Logs go to
// stderr so stdout stays free for packet data.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := cfg.NewLogger(w)
	slog.SetDefault(logger)
	return logger
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
