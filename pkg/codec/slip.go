package codec

import (
	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
)

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// EncodeSLIP returns data as one SLIP frame with END on both sides.
func EncodeSLIP(data []byte) []byte {
	out := make([]byte, 0, len(data)+2+len(data)/8)
	out = append(out, slipEnd)
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// SLIPDecoder splits a SLIP stream into packets.
type SLIPDecoder struct {
	fn      PacketFunc
	size    int
	buf     []byte
	escaped bool
	// overflow discards the rest of a packet that outgrew the buffer.
	overflow bool
	dropped  uint64
}

// NewSLIPDecoder creates a decoder that accepts packets of up to size bytes
// and calls fn for each. Larger packets are dropped.
func NewSLIPDecoder(size int, fn PacketFunc) (*SLIPDecoder, error) {
	if err := checkBufferSize(size); err != nil {
		return nil, err
	}
	return &SLIPDecoder{
		fn:   fn,
		size: size,
		buf:  make([]byte, 0, size),
	}, nil
}

// Write decodes p. It never fails.
func (d *SLIPDecoder) Write(p []byte) (int, error) {
	for _, b := range p {
		d.WriteByte(b)
	}
	return len(p), nil
}

// WriteByte decodes one byte.
func (d *SLIPDecoder) WriteByte(b byte) error {
	if b == slipEnd {
		d.flush()
		return nil
	}

	if d.escaped {
		d.escaped = false
		switch b {
		case slipEscEnd:
			b = slipEnd
		case slipEscEsc:
			b = slipEsc
		}
	} else if b == slipEsc {
		d.escaped = true
		return nil
	}

	if d.overflow {
		return nil
	}
	if len(d.buf) == d.size {
		d.overflow = true
		return nil
	}
	d.buf = append(d.buf, b)
	return nil
}

// Dropped returns the number of packets discarded for exceeding the buffer.
func (d *SLIPDecoder) Dropped() uint64 { return d.dropped }

// Reset discards a partially received packet.
func (d *SLIPDecoder) Reset() {
	d.buf = d.buf[:0]
	d.escaped = false
	d.overflow = false
}

// Err returns an E301 error describing the drop count, or nil.
func (d *SLIPDecoder) Err() error {
	if d.dropped == 0 {
		return nil
	}
	return rcperrors.New("E301").WithField("dropped", d.dropped).WithField("buffer", d.size)
}

func (d *SLIPDecoder) flush() {
	switch {
	case d.overflow:
		d.dropped++
	case len(d.buf) > 0 && d.fn != nil:
		d.fn(d.buf)
	}
	d.Reset()
}
