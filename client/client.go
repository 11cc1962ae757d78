// Package client is the counterpart to package server: it issues the
// same command verbs over a real TCP connection. Subscribe hands the
// connection to a *Subscriber, which has no non-pub/sub methods; the
// *Client itself is not disabled and must not be used afterward.
package client

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"miniredis/conn"
	"miniredis/resp"
)

// Client is a connected, not-yet-subscribed session.
type Client struct {
	conn *conn.Connection
}

// Connect dials addr and returns a ready Client.
func Connect(addr string) (*Client, error) {
	netConn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Client{conn: conn.New(netConn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Get returns the value of key, or (nil, false) if it is unset.
func (c *Client) Get(key string) ([]byte, bool, error) {
	if err := c.conn.WriteFrame(requestFrame("get", key)); err != nil {
		return nil, false, err
	}
	response, err := c.readResponse()
	if err != nil {
		return nil, false, err
	}
	switch response.Kind {
	case respKindNull:
		return nil, false, nil
	case respKindBulk, respKindSimple:
		return []byte(response.String()), true, nil
	default:
		return nil, false, unexpectedResponse(response)
	}
}

// SetOptions configures an optional SET. Zero value is a plain SET with
// no expiry and no NX/XX guard.
type SetOptions struct {
	Expiry time.Duration
	NX     bool
	XX     bool
}

// Set stores value under key. It returns false if an NX/XX guard
// prevented the write.
func (c *Client) Set(key string, value []byte, opts SetOptions) (bool, error) {
	frame := requestFrameBytes("set", []byte(key), value)
	if opts.Expiry > 0 {
		if opts.Expiry%time.Second == 0 {
			frame.PushBulk([]byte("EX"))
			frame.PushBulk([]byte(strconv.FormatInt(int64(opts.Expiry/time.Second), 10)))
		} else {
			frame.PushBulk([]byte("PX"))
			frame.PushBulk([]byte(strconv.FormatInt(int64(opts.Expiry/time.Millisecond), 10)))
		}
	}
	if opts.NX {
		frame.PushBulk([]byte("NX"))
	}
	if opts.XX {
		frame.PushBulk([]byte("XX"))
	}

	if err := c.conn.WriteFrame(frame); err != nil {
		return false, err
	}
	response, err := c.readResponse()
	if err != nil {
		return false, err
	}
	switch {
	case response.Kind == respKindSimple && response.Str == "OK":
		return true, nil
	case response.Kind == respKindNull:
		return false, nil
	default:
		return false, unexpectedResponse(response)
	}
}

// Publish posts message to channel and returns the server's advisory
// subscriber count.
func (c *Client) Publish(channel string, message []byte) (int, error) {
	if err := c.conn.WriteFrame(requestFrameBytes("publish", []byte(channel), message)); err != nil {
		return 0, err
	}
	response, err := c.readResponse()
	if err != nil {
		return 0, err
	}
	if response.Kind != respKindInteger {
		return 0, unexpectedResponse(response)
	}
	return int(response.Int), nil
}

// Subscribe sends a combined SUBSCRIBE for channels, verifies one
// acknowledgement per channel in order, and returns a Subscriber. c
// must not be used again afterward.
func (c *Client) Subscribe(channels ...string) (*Subscriber, error) {
	frame := resp.ArrayOf(resp.BulkFrame([]byte("subscribe")))
	for _, ch := range channels {
		frame.PushBulk([]byte(ch))
	}
	if err := c.conn.WriteFrame(frame); err != nil {
		return nil, err
	}

	for _, ch := range channels {
		ack, err := c.readResponse()
		if err != nil {
			return nil, err
		}
		if err := expectAck(ack, "subscribe", ch); err != nil {
			return nil, err
		}
	}

	return &Subscriber{client: c, subscribed: append([]string{}, channels...)}, nil
}

func (c *Client) readResponse() (resp.Frame, error) {
	frame, ok, err := c.conn.ReadFrame()
	if err != nil {
		return resp.Frame{}, err
	}
	if !ok {
		return resp.Frame{}, errors.New("connection reset by server")
	}
	if frame.Kind == respKindError {
		return resp.Frame{}, errors.New(frame.Str)
	}
	return frame, nil
}

func unexpectedResponse(frame resp.Frame) error {
	return errors.Errorf("unexpected response: %s", frame.String())
}

func expectAck(frame resp.Frame, kind, channel string) error {
	if frame.Kind != respKindArray || len(frame.Array) < 2 {
		return unexpectedResponse(frame)
	}
	if !frame.Array[0].EqualString(kind) || !frame.Array[1].EqualString(channel) {
		return unexpectedResponse(frame)
	}
	return nil
}

func requestFrame(name string, parts ...string) resp.Frame {
	f := resp.ArrayOf(resp.BulkFrame([]byte(name)))
	for _, p := range parts {
		f.PushBulk([]byte(p))
	}
	return f
}

func requestFrameBytes(name string, parts ...[]byte) resp.Frame {
	f := resp.ArrayOf(resp.BulkFrame([]byte(name)))
	for _, p := range parts {
		f.PushBulk(p)
	}
	return f
}

// Local aliases keep the switch statements above readable without
// importing resp's Kind constants under a qualified name everywhere.
const (
	respKindSimple  = resp.KindSimple
	respKindError   = resp.KindError
	respKindInteger = resp.KindInteger
	respKindBulk    = resp.KindBulk
	respKindNull    = resp.KindNull
	respKindArray   = resp.KindArray
)
