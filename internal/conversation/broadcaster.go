// ABOUTME: In-memory fan-out broadcaster for realtime message delivery
// ABOUTME: Publishes committed MessageViews to all subscribers of a topic

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultSubscriberBuffer is the channel buffer for each subscriber.
	DefaultSubscriberBuffer = 64
)

// Publisher fans a message out to the subscribers of a topic.
type Publisher interface {
	Publish(topic string, msg *MessageView)
}

// Broadcaster provides in-memory pub/sub for committed messages.
// Subscribers register for a topic and receive messages as they are
// published. Delivery is best effort: a subscriber whose buffer is full
// misses the message.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *MessageView // topic -> subID -> ch
	bufferSize  int
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default and a
// bufferSize of zero for DefaultSubscriberBuffer.
func NewBroadcaster(bufferSize int, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *MessageView),
		bufferSize:  bufferSize,
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for messages on the given topic.
// Returns a channel that receives messages and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, topic string) (<-chan *MessageView, string) {
	subID := uuid.New().String()
	ch := make(chan *MessageView, b.bufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan *MessageView)
	}
	b.subscribers[topic][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "topic", topic, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(topic, subID)
	}()

	return ch, subID
}

// Publish sends msg to all subscribers of topic without blocking.
func (b *Broadcaster) Publish(topic string, msg *MessageView) {
	// sends are non-blocking, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			b.logger.Debug("dropped message for slow subscriber",
				"topic", topic,
				"sub_id", subID,
				"message_id", msg.ID)
		}
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, topic)
	}

	b.logger.Debug("subscriber removed", "topic", topic, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, topic)
	}

	b.logger.Debug("broadcaster closed")
}

var _ Publisher = (*Broadcaster)(nil)
