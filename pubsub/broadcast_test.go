package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishWithNoSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	n := b.Publish([]byte("hi"))
	assert.Equal(t, 0, n)
}

func TestBroadcaster_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster(4)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish([]byte("one"))
	b.Publish([]byte("two"))

	msg, ok := sub.Recv(nil)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), msg)

	msg, ok = sub.Recv(nil)
	require.True(t, ok)
	assert.Equal(t, []byte("two"), msg)
}

func TestBroadcaster_LaggingSubscriberNeverBlocksPublisher(t *testing.T) {
	const capacity = 4
	b := NewBroadcaster(capacity)
	sub := b.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < capacity*10; i++ {
			b.Publish([]byte{byte(i)})
		}
	}()

	select {
	case <-done:
	default:
	}
	<-done // publisher completes without ever blocking on the slow reader

	// Resuming now must not panic or deadlock; the oldest overflowed
	// messages were silently dropped.
	msg, ok := sub.Recv(nil)
	require.True(t, ok)
	assert.NotNil(t, msg)
}

func TestBroadcaster_CloseRemovesSubscriber(t *testing.T) {
	b := NewBroadcaster(4)
	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := sub.Recv(nil)
	assert.False(t, ok)
}

func TestRegistry_PublishUnknownChannel(t *testing.T) {
	r := NewRegistry(4)
	assert.Equal(t, 0, r.Publish("nope", []byte("x")))
}

func TestRegistry_SubscribeThenPublish(t *testing.T) {
	r := NewRegistry(4)
	sub := r.Subscribe("news")
	defer sub.Close()

	n := r.Publish("news", []byte("hi"))
	assert.Equal(t, 1, n)

	msg, ok := sub.Recv(nil)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), msg)
}

func TestRegistry_PruneDropsEmptyChannel(t *testing.T) {
	r := NewRegistry(4)
	sub := r.Subscribe("news")
	sub.Close()

	r.Prune("news")

	_, exists := r.channels["news"]
	assert.False(t, exists)
}
