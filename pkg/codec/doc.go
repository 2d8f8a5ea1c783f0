// Package codec frames rcp packets for byte streams that have no message
// boundaries of their own, such as stdio or serial lines.
//
// Two framings are supported:
//
//   - SLIP (RFC 1055): packets are terminated by END (0xC0); END and ESC
//     (0xDB) inside a packet are escaped.
//   - Size prefix: each packet is preceded by its length as a 4-byte
//     big-endian integer.
//
// Decoders are streaming io.Writers that call a function once per complete
// packet. They are not safe for concurrent use.
package codec

import (
	"fmt"

	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
)

// DefaultBufferSize is the largest packet a decoder accepts unless told
// otherwise.
const DefaultBufferSize = 1024

// PacketFunc receives one decoded packet. The slice is only valid during
// the call.
type PacketFunc func(packet []byte)

// Framing names a stream framing.
type Framing string

const (
	FramingNone Framing = "none"
	FramingSLIP Framing = "slip"
	FramingSize Framing = "size"
)

// ParseFraming validates a framing name. The empty string means none.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "", FramingNone:
		return FramingNone, nil
	case FramingSLIP, FramingSize:
		return Framing(s), nil
	}
	return "", rcperrors.New("E104").WithField("framing", s)
}

// Encode frames data with f.
func (f Framing) Encode(data []byte) []byte {
	switch f {
	case FramingSLIP:
		return EncodeSLIP(data)
	case FramingSize:
		return PrefixSize(data)
	default:
		return data
	}
}

func checkBufferSize(size int) error {
	if size <= 0 {
		return rcperrors.New("E103").WithDetail(fmt.Sprintf("got %d", size))
	}
	return nil
}
