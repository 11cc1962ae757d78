package server

import (
	"miniredis/command"
	"miniredis/conn"
	"miniredis/internal/logging"
	"miniredis/internal/metrics"
	"miniredis/resp"
	"miniredis/store"
)

// connHandler processes one client connection: it reads frames,
// dispatches commands, and drops into the subscribe loop on SUBSCRIBE.
// Commands on a single connection are strictly serialized: each
// command's response is written before the next frame is taken from
// the reader goroutine. That goroutine does not wait for the response;
// it may already have read the next frame from the socket.
type connHandler struct {
	id    string
	conn  *conn.Connection
	store *store.Store
	log   logging.Logger
	done  <-chan struct{} // closed when the server is shutting down
}

// frameResult is one frame (or terminal error) from the background
// reader goroutine that makes conn.ReadFrame's blocking call
// select-compatible.
type frameResult struct {
	frame resp.Frame
	ok    bool
	err   error
}

// run reads and applies commands until the connection closes, a
// protocol or I/O error occurs, or shutdown is signalled. It never
// returns an error: every failure is logged and simply ends the
// connection, matching the "misbehaving or disconnected client is
// cheap to drop" error model.
func (h *connHandler) run() {
	frames, stopReader := h.startReader()
	defer close(stopReader)

	for {
		select {
		case <-h.done:
			return
		case res := <-frames:
			if res.err != nil {
				h.log.Warnf("connection error: %v", res.err)
				return
			}
			if !res.ok {
				return // clean EOF between frames
			}
			if !h.handleFrame(res.frame, frames, stopReader) {
				return
			}
		}
	}
}

// startReader spawns the single long-lived goroutine that turns the
// blocking Connection.ReadFrame into a channel source, so the main
// loop's select can also watch the shutdown signal. Closing stopReader
// lets the goroutine exit without blocking forever on a send nobody
// will receive.
func (h *connHandler) startReader() (<-chan frameResult, chan struct{}) {
	frames := make(chan frameResult)
	stop := make(chan struct{})

	go func() {
		for {
			frame, ok, err := h.conn.ReadFrame()
			select {
			case frames <- frameResult{frame: frame, ok: ok, err: err}:
			case <-stop:
				return
			}
			if err != nil || !ok {
				return
			}
		}
	}()

	return frames, stop
}

// handleFrame dispatches one parsed frame. It returns false when the
// connection should close.
func (h *connHandler) handleFrame(frame resp.Frame, frames <-chan frameResult, stopReader chan struct{}) bool {
	cmd, err := command.FromFrame(frame)
	if err != nil {
		h.log.Warnf("protocol error: %v", err)
		return false
	}

	h.log.Debugf("command %s", cmd.GetName())
	metrics.CommandsTotal.WithLabelValues(cmd.GetName()).Inc()

	switch cmd.Kind {
	case command.KindSubscribe:
		h.runSubscribeLoop(cmd.Channels, frames, stopReader)
		return false // the subscribe loop owns the connection until it returns
	case command.KindUnsubscribe:
		// UNSUBSCRIBE outside the subscribe loop has no subscriber set to
		// act on; this is a protocol error per the command surface.
		h.log.Warnf("UNSUBSCRIBE received outside subscribe state")
		return false
	default:
		response := command.Apply(cmd, h.store)
		if err := h.conn.WriteFrame(response); err != nil {
			h.log.Warnf("write error: %v", err)
			return false
		}
		return true
	}
}
