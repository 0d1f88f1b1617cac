package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := New()
	defer h.Close()

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Publish(map[string]string{"incident_id": "inc-1"})

	select {
	case msg := <-ch:
		require.Equal(t, MessageIncidentUpsert, msg.Type)
		require.EqualValues(t, 1, msg.Seq)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestOverflowSendsResyncRequired(t *testing.T) {
	h := New()
	defer h.Close()

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 0; i < DefaultQueueSize+5; i++ {
		h.Publish(i)
	}

	var sawResync bool
	for i := 0; i < DefaultQueueSize; i++ {
		select {
		case msg := <-ch:
			if msg.Type == MessageResyncRequired {
				sawResync = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out draining channel")
		}
	}
	require.True(t, sawResync)
}

func TestSubscriberCountTracksSubscribeUnsubscribe(t *testing.T) {
	h := New()
	defer h.Close()

	require.Equal(t, 0, h.SubscriberCount())
	_, unsubscribe := h.Subscribe()
	require.Equal(t, 1, h.SubscriberCount())
	unsubscribe()
	require.Equal(t, 0, h.SubscriberCount())
}
