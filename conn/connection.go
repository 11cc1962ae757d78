// Package conn wraps a net.Conn with frame-level read and write methods
// built on the resp codec: a growable read buffer absorbs partial
// reads, and every write is flushed to the socket before returning.
package conn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"miniredis/resp"
)

const initialBufferSize = 4 * 1024

// Connection sends and receives Frames over a TCP stream. It is not
// safe for concurrent use by multiple goroutines on the same side
// (read and write may proceed concurrently from different goroutines,
// but two concurrent readers or two concurrent writers will race).
type Connection struct {
	netConn net.Conn
	writer  *bufio.Writer

	buf    []byte
	start  int // first unconsumed byte
	filled int // one past the last valid byte
}

// New wraps an established net.Conn.
func New(netConn net.Conn) *Connection {
	return &Connection{
		netConn: netConn,
		writer:  bufio.NewWriter(netConn),
		buf:     make([]byte, initialBufferSize),
	}
}

// RemoteAddr returns the address of the peer, or "" if unknown.
func (c *Connection) RemoteAddr() string {
	if c.netConn == nil {
		return ""
	}
	return c.netConn.RemoteAddr().String()
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.netConn.Close()
}

// ErrConnectionReset indicates the peer closed the stream in the
// middle of a frame rather than at a frame boundary.
var ErrConnectionReset = errors.New("conn: connection reset by peer")

// ReadFrame returns the next frame on the stream. It returns (Frame{},
// false, nil) on a clean end of stream (the peer closed the connection
// between frames), and ErrConnectionReset if the stream ended mid-frame.
func (c *Connection) ReadFrame() (resp.Frame, bool, error) {
	for {
		frame, n, ok, err := c.tryParse()
		if err != nil {
			return resp.Frame{}, false, err
		}
		if ok {
			c.start += n
			c.compact()
			return frame, true, nil
		}

		n, err = c.fill()
		if err != nil {
			return resp.Frame{}, false, err
		}
		if n == 0 {
			if c.filled == c.start {
				return resp.Frame{}, false, nil
			}
			return resp.Frame{}, false, ErrConnectionReset
		}
	}
}

// tryParse attempts to decode a single frame from the buffered,
// unconsumed bytes. ok is false when more data is needed. A non-nil
// error means Check found the buffered prefix malformed already — a
// fatal protocol error the caller must return immediately rather than
// block in fill() waiting for bytes that will never fix it.
func (c *Connection) tryParse() (resp.Frame, int, bool, error) {
	pending := c.buf[c.start:c.filled]
	if err := resp.Check(pending); err != nil {
		if errors.Is(err, resp.ErrIncomplete) {
			return resp.Frame{}, 0, false, nil
		}
		return resp.Frame{}, 0, false, err
	}
	frame, n, err := resp.Parse(pending)
	if err != nil {
		// Check already validated the prefix; a Parse error here means a
		// genuine protocol violation rather than "need more data".
		panic(fmt.Sprintf("conn: parse failed after successful check: %v", err))
	}
	return frame, n, true, nil
}

// fill reads more bytes from the socket into the tail of the buffer,
// growing it if there is no room left.
func (c *Connection) fill() (int, error) {
	if c.filled == len(c.buf) {
		c.grow()
	}
	n, err := c.netConn.Read(c.buf[c.filled:])
	if n > 0 {
		c.filled += n
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

func (c *Connection) grow() {
	next := make([]byte, len(c.buf)*2)
	copy(next, c.buf[c.start:c.filled])
	c.buf = next
	c.filled -= c.start
	c.start = 0
}

// compact slides unconsumed bytes back to the front once the consumed
// prefix grows large, so the buffer does not creep upward forever on a
// long-lived connection that reads many small frames.
func (c *Connection) compact() {
	if c.start == 0 {
		return
	}
	if c.start < len(c.buf)/2 {
		return
	}
	copy(c.buf, c.buf[c.start:c.filled])
	c.filled -= c.start
	c.start = 0
}

// WriteFrame encodes frame and flushes it to the socket. Flushing is
// mandatory on every call: nothing else drains the write buffer.
func (c *Connection) WriteFrame(frame resp.Frame) error {
	if err := resp.Encode(c.writer, frame); err != nil {
		return err
	}
	return c.writer.Flush()
}
