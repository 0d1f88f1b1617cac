// Package hub is the push fan-out broadcaster: a single producer posts
// incident_upsert events, and any number of stream subscribers receive
// them over a bounded per-subscriber channel, with periodic heartbeats and
// a resync marker on overflow. Grounded on the SSE broadcast pattern used
// for live camera events in the wider NVR ecosystem this spec descends
// from: a subscriber-channel map guarded by a mutex, non-blocking send.
package hub

import (
	"sync"
	"time"
)

// DefaultQueueSize is the bounded per-subscriber channel depth.
const DefaultQueueSize = 256

// HeartbeatInterval is the maximum gap between messages delivered to an
// idle subscriber.
const HeartbeatInterval = 10 * time.Second

// MessageType discriminates the three kinds of frame a subscriber may
// receive over the stream.
type MessageType string

const (
	MessageIncidentUpsert MessageType = "incident_upsert"
	MessageHeartbeat      MessageType = "heartbeat"
	MessageResyncRequired MessageType = "resync_required"
	MessageShutdown       MessageType = "shutdown"
)

// Message is one frame delivered to subscribers. Seq is monotonically
// increasing across the whole hub so a subscriber can detect gaps even
// after a resync.
type Message struct {
	Seq     uint64      `json:"seq"`
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// Hub is the single-producer, many-consumer broadcaster. The zero value is
// not usable; build one with New.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	seq         uint64

	stop chan struct{}
	once sync.Once
}

// New creates a Hub and starts its heartbeat loop.
func New() *Hub {
	h := &Hub{
		subscribers: make(map[chan Message]struct{}),
		stop:        make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function the caller must defer.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, DefaultQueueSize)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

// SubscriberCount reports the current number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish broadcasts an incident_upsert to every subscriber. On a full
// subscriber queue, the new message is not delivered to that subscriber:
// the oldest queued message is dropped and a resync_required marker is
// queued in its place (best-effort; if a concurrent broadcast refills the
// slot first, the subscriber will notice the sequence gap on its next
// delivered message).
func (h *Hub) Publish(payload any) {
	h.broadcast(MessageIncidentUpsert, payload)
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.broadcast(MessageHeartbeat, nil)
		}
	}
}

func (h *Hub) broadcast(msgType MessageType, payload any) {
	h.mu.Lock()
	h.seq++
	msg := Message{Seq: h.seq, Type: msgType, Payload: payload}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Message{Seq: msg.Seq, Type: MessageResyncRequired}:
			default:
			}
		}
	}
}

// Close stops the heartbeat loop and closes every subscriber channel.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.stop)
		h.mu.Lock()
		defer h.mu.Unlock()
		for ch := range h.subscribers {
			close(ch)
			delete(h.subscribers, ch)
		}
	})
}

// Shutdown broadcasts a terminal shutdown message to every subscriber, gives
// it a brief moment to be delivered, then closes the hub. Called once, on
// process shutdown.
func (h *Hub) Shutdown() {
	h.broadcast(MessageShutdown, nil)
	time.Sleep(50 * time.Millisecond)
	h.Close()
}
