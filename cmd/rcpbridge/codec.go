package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rabbitcontrol/rcpbridge/pkg/codec"
)

func slipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slip",
		Short: "SLIP-encode or decode stdin",
	}

	var bufferSize int
	decode := &cobra.Command{
		Use:   "decode",
		Short: "Print each SLIP packet on stdin as a hex line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return decodeStream(cmd.InOrStdin(), cmd.OutOrStdout(), codec.FramingSLIP, bufferSize)
		},
	}
	decode.Flags().IntVarP(&bufferSize, "buffer", "b", codec.DefaultBufferSize, "Largest packet in bytes")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode",
			Short: "Write stdin as one SLIP packet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return encodeStream(cmd.InOrStdin(), cmd.OutOrStdout(), codec.FramingSLIP)
			},
		},
		decode,
	)
	return cmd
}

func sizePrefixCmd() *cobra.Command {
	var (
		decode     bool
		bufferSize int
	)

	cmd := &cobra.Command{
		Use:   "sizeprefix",
		Short: "Add or strip a 4-byte big-endian length prefix",
		Long: `Without --decode, stdin is written as one size-prefixed packet.
With --decode, each size-prefixed packet on stdin is printed as a hex line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if decode {
				return decodeStream(cmd.InOrStdin(), cmd.OutOrStdout(), codec.FramingSize, bufferSize)
			}
			return encodeStream(cmd.InOrStdin(), cmd.OutOrStdout(), codec.FramingSize)
		},
	}

	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "Decode instead of encode")
	cmd.Flags().IntVarP(&bufferSize, "buffer", "b", codec.DefaultBufferSize, "Largest packet in bytes")

	return cmd
}

func encodeStream(r io.Reader, w io.Writer, framing codec.Framing) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	_, err = w.Write(framing.Encode(data))
	return err
}

func decodeStream(r io.Reader, w io.Writer, framing codec.Framing, bufferSize int) error {
	var werr error
	err := readPackets(r, framing, bufferSize, func(p []byte) {
		if werr == nil {
			_, werr = fmt.Fprintln(w, hex.EncodeToString(p))
		}
	})
	if err != nil {
		return err
	}
	return werr
}

