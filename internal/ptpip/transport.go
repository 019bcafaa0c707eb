package ptpip

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

var transportLog = logrus.WithField("component", "transport")

// Channel wraps one TCP connection (command or event) with framing,
// serialised receives, and fire-and-forget sends. It generalises the
// teacher's per-call "dial, write, read one length-prefixed frame, close"
// (vens.ControlSession.sendRecv) to a long-lived connection that may
// deliver many frames over its lifetime, in arbitrary chunk sizes.
type Channel struct {
	name   string
	conn   net.Conn
	framer Framer
	readAt []byte
}

// Dial opens a TCP connection to addr within spec.md's 10-second connect
// timeout.
func Dial(name, addr string) (*Channel, error) {
	conn, err := net.DialTimeout("tcp", addr, ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, name, err)
	}
	transportLog.WithField("addr", addr).WithField("channel", name).Debug("connected")
	return &Channel{name: name, conn: conn, readAt: make([]byte, 4096)}, nil
}

// Send writes data to the connection. Sends are fire-and-forget from the
// caller's perspective beyond the write completing or failing.
func (c *Channel) Send(data []byte) error {
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("%w: %s send: %v", ErrConnectionLost, c.name, err)
	}
	return nil
}

// Receive blocks until one whole frame has been assembled or the
// receive-timeout budget (spec.md §4.2, 15s) elapses. Only one Receive
// call is ever outstanding per Channel — the Session executor enforces
// that serialisation.
func (c *Channel) Receive() ([]byte, error) {
	if frame, ok, err := c.framer.Pop(); err != nil {
		return nil, err
	} else if ok {
		return frame, nil
	}

	deadline := time.Now().Add(ReceiveTimeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConnectionLost, c.name, err)
		}
		n, err := c.conn.Read(c.readAt)
		if n > 0 {
			c.framer.Feed(c.readAt[:n])
		}
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, c.name)
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrConnectionLost, c.name, err)
		}

		frame, ok, perr := c.framer.Pop()
		if perr != nil {
			return nil, perr
		}
		if ok {
			return frame, nil
		}
	}
}

// Close closes the underlying socket. Any Receive blocked on this channel
// resolves with ErrConnectionLost.
func (c *Channel) Close() error {
	return c.conn.Close()
}
