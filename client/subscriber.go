package client

import (
	"github.com/pkg/errors"

	"miniredis/resp"
)

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}

// Subscriber is a connection that has entered subscribe state. No
// non-pub/sub method exists on this type: the transition from Client is
// one-way, matching the reference client's "consumes self" contract.
type Subscriber struct {
	client     *Client
	subscribed []string
}

// Subscribed returns the channels currently subscribed to.
func (s *Subscriber) Subscribed() []string {
	out := make([]string, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

// Close closes the underlying connection.
func (s *Subscriber) Close() error {
	return s.client.Close()
}

// NextMessage blocks for the next published message, or returns
// (nil, false, nil) on a clean end of the subscription.
func (s *Subscriber) NextMessage() (*Message, bool, error) {
	frame, ok, err := s.client.conn.ReadFrame()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if frame.Kind != respKindArray || len(frame.Array) != 3 || !frame.Array[0].EqualString("message") {
		return nil, false, unexpectedResponse(frame)
	}
	return &Message{
		Channel: frame.Array[1].String(),
		Payload: []byte(frame.Array[2].String()),
	}, true, nil
}

// Subscribe adds channels to this subscription, verifying one
// acknowledgement per channel in order.
func (s *Subscriber) Subscribe(channels ...string) error {
	frame := resp.ArrayOf(resp.BulkFrame([]byte("subscribe")))
	for _, ch := range channels {
		frame.PushBulk([]byte(ch))
	}
	if err := s.client.conn.WriteFrame(frame); err != nil {
		return err
	}
	for _, ch := range channels {
		ack, ok, err := s.client.conn.ReadFrame()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("connection reset by server")
		}
		if err := expectAck(ack, "subscribe", ch); err != nil {
			return err
		}
	}
	s.subscribed = append(s.subscribed, channels...)
	return nil
}

// Unsubscribe drops channels (or every currently subscribed channel, if
// none are given), verifying one acknowledgement per removed channel.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	frame := resp.ArrayOf(resp.BulkFrame([]byte("unsubscribe")))
	for _, ch := range channels {
		frame.PushBulk([]byte(ch))
	}
	if err := s.client.conn.WriteFrame(frame); err != nil {
		return err
	}

	expected := len(channels)
	if expected == 0 {
		expected = len(s.subscribed)
	}

	for i := 0; i < expected; i++ {
		ack, ok, err := s.client.conn.ReadFrame()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("connection reset by server")
		}
		if ack.Kind != respKindArray || len(ack.Array) < 2 || !ack.Array[0].EqualString("unsubscribe") {
			return unexpectedResponse(ack)
		}
		removed := ack.Array[1].String()
		s.removeSubscribed(removed)
	}
	return nil
}

func (s *Subscriber) removeSubscribed(channel string) {
	out := s.subscribed[:0]
	for _, ch := range s.subscribed {
		if ch != channel {
			out = append(out, ch)
		}
	}
	s.subscribed = out
}
