package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rabbitcontrol/rcpbridge/internal/config"
	"github.com/rabbitcontrol/rcpbridge/pkg/codec"
	"github.com/rabbitcontrol/rcpbridge/pkg/engine"
	"github.com/rabbitcontrol/rcpbridge/pkg/host"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	var (
		port        int
		listenHost  string
		tunnelURI   string
		interval    int
		raw         bool
		framing     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a parameter server",
		Long: `Run an rcp parameter server.

Every websocket client, the tunnel and the raw stdio pipe are joined by one
relay: a packet from any peer reaches every other peer.

Examples:
  rcpbridge serve
  rcpbridge serve --port=10001 --metrics=127.0.0.1:9100
  rcpbridge serve --tunnel=wss://relay.example.com/rcpserver/connect?key=k --interval=5
  rcpbridge serve --raw --framing=slip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("host") {
				cfg.Server.Host = listenHost
			}
			if flags.Changed("tunnel") {
				cfg.Tunnel.URI = tunnelURI
			}
			if flags.Changed("interval") {
				cfg.Tunnel.Interval = interval
			}
			if flags.Changed("raw") {
				cfg.Host.Raw = raw
			}
			if flags.Changed("framing") {
				cfg.Host.Framing = framing
			}
			if flags.Changed("metrics") {
				cfg.Metrics.Address = metricsAddr
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Websocket port, 0 disables the server")
	cmd.Flags().StringVarP(&listenHost, "host", "H", "", "Host to bind to (default all interfaces)")
	cmd.Flags().StringVarP(&tunnelURI, "tunnel", "t", "", "Tunnel relay URI")
	cmd.Flags().IntVarP(&interval, "interval", "i", 2, "Tunnel retry interval in seconds, 0 disables retrying")
	cmd.Flags().BoolVar(&raw, "raw", false, "Exchange packets on stdin/stdout instead of websockets")
	cmd.Flags().StringVar(&framing, "framing", "none", "Raw framing: none, slip, size")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Admin endpoint address for /metrics, /healthz and /debug/counters")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stderr)
	framing, err := codec.ParseFraming(cfg.Host.Framing)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters := metrics.NewPrometheus(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithRegistry(registry),
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	loop := host.NewLoop(0, logger)
	out := &stdioOutlet{w: os.Stdout, framing: framing, logger: logger}
	ps := host.NewParameterServer(loop, out, &host.ParameterServerConfig{
		Server: cfg.ServerOptions().WithLogger(logger).WithCounters(counters),
		Tunnel: cfg.TunnelOptions().WithLogger(logger).WithCounters(counters),
		Engine: engine.DefaultConfig().WithLogger(logger).WithCounters(counters),
		Raw:    cfg.Host.Raw,
		Logger: logger,
	})
	defer ps.Close()

	if !cfg.Host.Raw {
		if err := ps.Listen(cfg.Server.Port); err != nil {
			return err
		}
	}
	if cfg.Tunnel.URI != "" {
		if err := ps.SetTunnelURI(cfg.Tunnel.URI); err != nil {
			return err
		}
	}

	if cfg.Host.Raw {
		go func() {
			err := readPackets(os.Stdin, framing, cfg.Host.BufferSize, func(p []byte) {
				if err := loop.Dispatch(func() { ps.Push(p) }); err != nil {
					logger.Warn("stdin packet dropped", "bytes", len(p), "error", err)
				}
			})
			if err != nil {
				logger.Error("stdin closed", "error", err)
			} else {
				logger.Info("stdin closed")
			}
		}()
	}

	if cfg.Metrics.Address != "" {
		healthy := func() bool { return cfg.Host.Raw || ps.Port() != 0 }
		go func() {
			if err := runAdmin(ctx, cfg.Metrics.Address, adminRouter(registry, counters, healthy), logger); err != nil {
				logger.Error("admin endpoint failed", "error", err)
			}
		}()
	}

	if !cfg.Host.Raw && cfg.Server.Port != 0 {
		success(os.Stderr, "rcp server on port %d", cfg.Server.Port)
	}

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("host loop: %w", err)
	}

	s := counters.Snapshot()
	logger.Info("stopped",
		"allocs", s.Allocs,
		"frees", s.Frees,
		"outstanding", s.Outstanding(),
		"reconnects", s.Reconnects,
	)
	return nil
}
