package pubsub

// Registry is the channel-name keyspace: one Broadcaster per channel,
// created on first subscribe or publish and pruned once its last
// subscriber goes away.
//
// Registry carries no mutex of its own: the channel map is store
// state, and the store's single mutex is the only lock that may ever
// guard it, matching every other piece of shared state the store
// holds. Callers sharing a Registry across goroutines (store.Store
// does) must hold their own lock for the duration of every method
// call below. Used from a single goroutine, as in this package's own
// tests, no external locking is needed.
type Registry struct {
	channels map[string]*Broadcaster
	bufSize  int
}

// NewRegistry creates an empty channel keyspace whose broadcasters use
// bufSize as each subscriber's ring buffer capacity.
func NewRegistry(bufSize int) *Registry {
	return &Registry{
		channels: make(map[string]*Broadcaster),
		bufSize:  bufSize,
	}
}

// Publish posts message to channel. If the channel has no broadcaster,
// or the broadcaster has no subscribers, it returns 0 without creating
// state.
func (r *Registry) Publish(channel string, message []byte) int {
	b, ok := r.channels[channel]
	if !ok {
		return 0
	}
	return b.Publish(message)
}

// Subscribe returns a fresh Subscription for channel, creating its
// broadcaster if this is the first reference to it.
func (r *Registry) Subscribe(channel string) *Subscription {
	b, ok := r.channels[channel]
	if !ok {
		b = NewBroadcaster(r.bufSize)
		r.channels[channel] = b
	}
	return b.Subscribe()
}

// Prune drops the broadcaster for channel if it currently has no
// subscribers. Channels are pruned opportunistically, not eagerly: a
// stale empty entry is harmless until the next prune pass.
func (r *Registry) Prune(channel string) {
	b, ok := r.channels[channel]
	if !ok {
		return
	}
	if b.SubscriberCount() == 0 {
		delete(r.channels, channel)
	}
}
