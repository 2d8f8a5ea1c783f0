package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/client"
	"github.com/rabbitcontrol/rcpbridge/pkg/host"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

func connectCmd(opts *globalOptions) *cobra.Command {
	var (
		subprotocol string
		insecure    bool
	)

	cmd := &cobra.Command{
		Use:   "connect URI",
		Short: "Open a websocket and bridge it to stdio",
		Long: `Open a websocket client connection.

Each line read from stdin is sent as a text frame. Binary frames from the
server are printed as hex, text frames as they are.

Examples:
  rcpbridge connect ws://localhost:10000
  rcpbridge connect wss://relay.example.com/t --insecure`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if insecure {
				cfg.Client.InsecureSkipVerify = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runConnect(cmd.Context(), cfg.ClientOptions(), args[0], subprotocol, newLogger(cfg, os.Stderr))
		},
	}

	cmd.Flags().StringVar(&subprotocol, "subprotocol", "", "Websocket subprotocol to offer")
	cmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")

	return cmd
}

func runConnect(parent context.Context, config *client.Config, uri, subprotocol string, logger *slog.Logger) error {
	if _, _, err := transport.NormalizeURI(uri); err != nil {
		return errors.New("E102").WithField("uri", uri).Wrap(err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loop := host.NewLoop(0, logger)
	out := &stdioOutlet{w: os.Stdout, hex: true, logger: logger}
	wc := host.NewWebsocketClient(loop, out, config.WithLogger(logger))
	defer wc.Dispose()

	if err := wc.Open(uri, subprotocol); err != nil {
		return err
	}

	go func() {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			loop.Dispatch(func() {
				if err := wc.SendText(line); err != nil {
					logger.Warn("send failed", "error", err)
				}
			})
		}
	}()

	loop.Run(ctx)
	return nil
}
