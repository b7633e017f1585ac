package events

import (
	"sync"

	"github.com/caabsu/outlight-img2img/internal/domain"
)

// TopicAll receives every published view regardless of run id.
const TopicAll = "all"

const subscriberBuffer = 16

// Hub fans run snapshots out to subscribers, one topic per run id. Sends
// never block: a subscriber that stops reading loses intermediate updates,
// which is fine because every view is a full snapshot.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.RunView]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan domain.RunView]struct{})}
}

// Subscribe registers for views published to topic. The returned cancel
// detaches the subscriber; the channel is closed when the topic or hub shuts
// down, so receivers must check the ok flag.
func (h *Hub) Subscribe(topic string) (<-chan domain.RunView, func()) {
	ch := make(chan domain.RunView, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[chan domain.RunView]struct{})
		h.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.topics[topic]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to the run's topic and to TopicAll.
func (h *Hub) Publish(view domain.RunView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.sendLocked(view.ID, view)
	h.sendLocked(TopicAll, view)
}

func (h *Hub) sendLocked(topic string, view domain.RunView) {
	for ch := range h.topics[topic] {
		select {
		case ch <- view:
		default:
		}
	}
}

// CloseTopic ends every subscription on topic, closing their channels. Used
// when a run is deleted so its event streams terminate.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[topic] {
		close(ch)
	}
	delete(h.topics, topic)
}

// Close shuts the hub down and ends all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.topics {
		for ch := range subs {
			close(ch)
		}
	}
	h.topics = make(map[string]map[chan domain.RunView]struct{})
}
