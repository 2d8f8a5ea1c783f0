package codec

import (
	"encoding/binary"

	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
)

// PrefixLen is the length of the size prefix.
const PrefixLen = 4

// PrefixSize returns data preceded by its length as a 4-byte big-endian
// integer.
func PrefixSize(data []byte) []byte {
	out := make([]byte, PrefixLen, PrefixLen+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	return append(out, data...)
}

// SPPParser splits a stream of size-prefixed packets.
type SPPParser struct {
	fn   PacketFunc
	size int

	header  [PrefixLen]byte
	have    int
	want    uint32
	body    []byte
	skip    uint32
	dropped uint64
}

// NewSPPParser creates a parser that accepts packets of up to size bytes
// and calls fn for each. Larger packets are skipped.
func NewSPPParser(size int, fn PacketFunc) (*SPPParser, error) {
	if err := checkBufferSize(size); err != nil {
		return nil, err
	}
	return &SPPParser{
		fn:   fn,
		size: size,
		body: make([]byte, 0, size),
	}, nil
}

// Write parses p. It never fails.
func (s *SPPParser) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		switch {
		case s.skip > 0:
			k := min(uint32(len(p)), s.skip)
			s.skip -= k
			p = p[k:]

		case s.have < PrefixLen:
			k := copy(s.header[s.have:], p)
			s.have += k
			p = p[k:]
			if s.have == PrefixLen {
				s.start(binary.BigEndian.Uint32(s.header[:]))
			}

		default:
			k := min(len(p), int(s.want)-len(s.body))
			s.body = append(s.body, p[:k]...)
			p = p[k:]
			if len(s.body) == int(s.want) {
				s.emit()
			}
		}
	}
	return n, nil
}

// Reset drops any partially parsed packet and waits for a new header.
func (s *SPPParser) Reset() {
	s.have = 0
	s.want = 0
	s.skip = 0
	s.body = s.body[:0]
}

// Dropped returns the number of packets skipped for exceeding the buffer.
func (s *SPPParser) Dropped() uint64 { return s.dropped }

// Err returns an E301 error describing the drop count, or nil.
func (s *SPPParser) Err() error {
	if s.dropped == 0 {
		return nil
	}
	return rcperrors.New("E301").WithField("dropped", s.dropped).WithField("buffer", s.size)
}

func (s *SPPParser) start(n uint32) {
	switch {
	case n == 0:
		s.have = 0
	case n > uint32(s.size):
		s.dropped++
		s.have = 0
		s.skip = n
	default:
		s.want = n
	}
}

func (s *SPPParser) emit() {
	if s.fn != nil {
		s.fn(s.body)
	}
	s.Reset()
}
