package server

import (
	"miniredis/command"
	"miniredis/internal/metrics"
	"miniredis/pubsub"
	"miniredis/resp"
)

// subMessage is one fanned-in pub/sub delivery, tagged with the
// channel it arrived on.
type subMessage struct {
	channel string
	payload []byte
}

// runSubscribeLoop drives a connection once it has entered SUBSCRIBE
// state. It owns the connection until a clean EOF, a protocol error, or
// shutdown ends it; there is no path back to normal command mode.
func (h *connHandler) runSubscribeLoop(initial []string, frames <-chan frameResult, stopReader chan struct{}) {
	subs := make(map[string]*pubsub.Subscription)
	msgCh := make(chan subMessage, 64)
	done := make(chan struct{})

	defer close(done)
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	pending := initial

	for {
		for _, ch := range pending {
			h.subscribeChannel(ch, subs, msgCh, done)
			count := len(subs)
			ack := resp.ArrayOf(resp.Simple("subscribe"), resp.BulkFrame([]byte(ch)))
			ack.PushInt(uint64(count))
			if err := h.conn.WriteFrame(ack); err != nil {
				h.log.Warnf("write error: %v", err)
				return
			}
		}
		pending = nil

		select {
		case <-h.done:
			return

		case m := <-msgCh:
			metrics.PubSubMessagesTotal.WithLabelValues(m.channel).Inc()
			frame := resp.ArrayOf(
				resp.Simple("message"),
				resp.BulkFrame([]byte(m.channel)),
				resp.BulkFrame(m.payload),
			)
			if err := h.conn.WriteFrame(frame); err != nil {
				h.log.Warnf("write error: %v", err)
				return
			}

		case res := <-frames:
			if res.err != nil {
				h.log.Warnf("connection error: %v", res.err)
				return
			}
			if !res.ok {
				return // clean EOF
			}
			cont, more := h.handleSubscribeFrame(res.frame, subs, msgCh, done)
			if !cont {
				return
			}
			pending = more
		}
	}
}

// subscribeChannel (re)subscribes to ch, replacing any prior
// subscription under the same name: this mirrors the reference
// StreamMap's "insert overwrites" semantics for a repeated SUBSCRIBE.
func (h *connHandler) subscribeChannel(ch string, subs map[string]*pubsub.Subscription, msgCh chan<- subMessage, done <-chan struct{}) {
	if old, exists := subs[ch]; exists {
		old.Close()
	}

	sub := h.store.Subscribe(ch)
	subs[ch] = sub

	go func(channel string, sub *pubsub.Subscription) {
		for {
			msg, ok := sub.Recv(done)
			if !ok {
				return
			}
			select {
			case msgCh <- subMessage{channel: channel, payload: msg}:
			case <-done:
				return
			}
		}
	}(ch, sub)
}

// handleSubscribeFrame parses and applies one frame received while
// subscribed. Only SUBSCRIBE and UNSUBSCRIBE are permitted; anything
// else gets the standard unknown-command error and the loop continues.
// It returns the newly pending channel list from a nested SUBSCRIBE.
func (h *connHandler) handleSubscribeFrame(frame resp.Frame, subs map[string]*pubsub.Subscription, msgCh chan<- subMessage, done <-chan struct{}) (bool, []string) {
	cmd, err := command.FromFrame(frame)
	if err != nil {
		h.log.Warnf("protocol error: %v", err)
		return false, nil
	}

	switch cmd.Kind {
	case command.KindSubscribe:
		return true, cmd.Channels

	case command.KindUnsubscribe:
		channels := cmd.Channels
		if len(channels) == 0 {
			for ch := range subs {
				channels = append(channels, ch)
			}
		}
		for _, ch := range channels {
			if sub, ok := subs[ch]; ok {
				sub.Close()
				delete(subs, ch)
				h.store.PruneChannel(ch)
			}
			count := len(subs)
			ack := resp.ArrayOf(resp.Simple("unsubscribe"), resp.BulkFrame([]byte(ch)))
			ack.PushInt(uint64(count))
			if err := h.conn.WriteFrame(ack); err != nil {
				h.log.Warnf("write error: %v", err)
				return false, nil
			}
		}
		return true, nil

	default:
		response := resp.Err("ERR unknown command '" + cmd.GetName() + "'")
		if err := h.conn.WriteFrame(response); err != nil {
			h.log.Warnf("write error: %v", err)
			return false, nil
		}
		return true, nil
	}
}
