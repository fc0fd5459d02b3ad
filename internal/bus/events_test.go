package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	eb := New()
	a := eb.Subscribe()
	b := eb.Subscribe()

	eb.Publish(Event{Type: EventSyncStarted})

	for _, ch := range []chan Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, EventSyncStarted, evt.Type)
			assert.False(t, evt.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	eb := New()
	ch := eb.Subscribe()

	// Fill the buffer and keep publishing; Publish must never block.
	for i := 0; i < cap(ch)+10; i++ {
		eb.Publish(Event{Type: EventSyncProject})
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	eb := New()
	ch := eb.Subscribe()
	eb.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	require.NotPanics(t, func() {
		eb.Publish(Event{Type: EventSyncCompleted})
	})
}
