package host

import (
	"strconv"

	rcperrors "github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// Outlet receives host output. It is called on the Loop goroutine, or on the
// goroutine calling a host object method.
type Outlet interface {
	Data(data []byte)
	Text(text string)
	Connected(connected bool)
	Connections(n int)
	Port(port int)
}

// loopSink delivers transporter output to an Outlet on the Loop.
type loopSink struct {
	loop *Loop
	out  Outlet
}

func (s loopSink) Data(data []byte) {
	s.loop.post(func() { s.out.Data(data) })
}

// checkPort validates a host supplied port.
func checkPort(port int) (uint16, error) {
	if port < 0 || port > 65535 {
		return 0, rcperrors.New("E101").WithField("port", strconv.Itoa(port))
	}
	return uint16(port), nil
}

// connCounter reports the connection count of a server after each change.
type connCounter struct {
	loop    *Loop
	out     Outlet
	count   func() int
	current func() bool
}

func (c *connCounter) Connected(transport.Identity)    { c.report() }
func (c *connCounter) Disconnected(transport.Identity) { c.report() }

func (c *connCounter) report() {
	n := c.count()
	c.loop.post(func() {
		if c.current() {
			c.out.Connections(n)
		}
	})
}
