package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rabbitcontrol/rcpbridge/pkg/codec"
)

// stdioOutlet writes host output to a stream. Packets are framed for raw
// use, or printed as hex lines for humans.
type stdioOutlet struct {
	mu      sync.Mutex
	w       io.Writer
	framing codec.Framing
	hex     bool
	logger  *slog.Logger
}

func (o *stdioOutlet) Data(data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.hex {
		_, err = fmt.Fprintln(o.w, hex.EncodeToString(data))
	} else {
		_, err = o.w.Write(o.framing.Encode(data))
	}
	if err != nil {
		o.logger.Warn("stdout write failed", "bytes", len(data), "error", err)
	}
}

func (o *stdioOutlet) Text(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, text)
}

func (o *stdioOutlet) Connected(connected bool) {
	o.logger.Info("connection", "connected", connected)
}

func (o *stdioOutlet) Connections(n int) {
	o.logger.Info("connections", "count", n)
}

func (o *stdioOutlet) Port(port int) {
	o.logger.Info("port", "port", port)
}

// readPackets splits r into packets with framing and calls fn for each.
// fn owns the slice it is given. Unframed input yields one packet per read.
func readPackets(r io.Reader, framing codec.Framing, bufferSize int, fn func([]byte)) error {
	owned := func(p []byte) { fn(append([]byte(nil), p...)) }

	var sink io.Writer
	switch framing {
	case codec.FramingSLIP:
		d, err := codec.NewSLIPDecoder(bufferSize, owned)
		if err != nil {
			return err
		}
		sink = d
	case codec.FramingSize:
		p, err := codec.NewSPPParser(bufferSize, owned)
		if err != nil {
			return err
		}
		sink = p
	default:
		sink = writerFunc(func(p []byte) (int, error) {
			owned(p)
			return len(p), nil
		})
	}

	_, err := io.Copy(sink, bufio.NewReaderSize(r, bufferSize))
	return err
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
