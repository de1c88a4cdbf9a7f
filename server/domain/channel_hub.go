package domain

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const queueSize = 256

var errHubClosed = errors.New("hub is closed")

type channelHub struct {
	mu            sync.RWMutex
	channels      map[string]*hubChannel
	subscriptions map[string]Subscription
	closed        bool

	totalMessages atomic.Int64
	dropped       atomic.Int64
	startTime     time.Time
}

type hubChannel struct {
	mu          sync.RWMutex
	name        string
	subscribers map[string]chan<- Message
	queue       chan Message
	hub         *channelHub
}

func NewHub() Hub {
	return &channelHub{
		channels:      make(map[string]*hubChannel),
		subscriptions: make(map[string]Subscription),
		startTime:     time.Now(),
	}
}

func newHubChannel(name string, hub *channelHub) *hubChannel {
	c := &hubChannel{
		name:        name,
		subscribers: make(map[string]chan<- Message),
		queue:       make(chan Message, queueSize),
		hub:         hub,
	}
	go c.fanout()
	return c
}

// fanout is the only reader of the queue, so subscribers see messages in
// publish order. A subscriber whose buffer is full misses the message.
func (c *hubChannel) fanout() {
	for msg := range c.queue {
		c.mu.RLock()
		for _, deliver := range c.subscribers {
			select {
			case deliver <- msg:
			default:
				c.hub.dropped.Add(1)
			}
		}
		c.mu.RUnlock()
	}
}

func (h *channelHub) Subscribe(sub Subscription, deliver chan<- Message) error {
	if !sub.IsValid() || deliver == nil {
		return fmt.Errorf("invalid subscription %q: %w", sub.ID, ErrInvalidRequest)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHubClosed
	}
	if _, exists := h.subscriptions[sub.ID]; exists {
		return nil
	}

	ch, exists := h.channels[sub.Channel]
	if !exists {
		ch = newHubChannel(sub.Channel, h)
		h.channels[sub.Channel] = ch
	}

	ch.mu.Lock()
	ch.subscribers[sub.ID] = deliver
	ch.mu.Unlock()

	h.subscriptions[sub.ID] = sub
	return nil
}

func (h *channelHub) Unsubscribe(subscriptionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, exists := h.subscriptions[subscriptionID]
	if !exists {
		return nil
	}
	delete(h.subscriptions, subscriptionID)

	ch, exists := h.channels[sub.Channel]
	if !exists {
		return nil
	}
	ch.mu.Lock()
	delete(ch.subscribers, subscriptionID)
	remaining := len(ch.subscribers)
	ch.mu.Unlock()

	if remaining == 0 {
		close(ch.queue)
		delete(h.channels, sub.Channel)
	}
	return nil
}

// Publish enqueues msg for fan-out. Nobody listening is not an error; a full
// channel queue is.
func (h *channelHub) Publish(msg Message) error {
	if !msg.IsValid() {
		return fmt.Errorf("invalid message: %w", ErrInvalidRequest)
	}

	// the read lock is held across the send so Unsubscribe cannot close the
	// queue underneath us
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return fmt.Errorf("%w: %w", ErrPublishFailed, errHubClosed)
	}
	ch, exists := h.channels[msg.Channel]
	if !exists {
		return nil
	}

	select {
	case ch.queue <- msg:
		h.totalMessages.Add(1)
		return nil
	default:
		return fmt.Errorf("channel %s queue is full: %w", msg.Channel, ErrPublishFailed)
	}
}

func (h *channelHub) SubscriberCount(channel string) int {
	h.mu.RLock()
	ch, exists := h.channels[channel]
	h.mu.RUnlock()

	if !exists {
		return 0
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.subscribers)
}

func (h *channelHub) ActiveChannels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channels := make([]string, 0, len(h.channels))
	for name := range h.channels {
		channels = append(channels, name)
	}
	return channels
}

func (h *channelHub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveChannels:      len(h.channels),
		ActiveSubscriptions: len(h.subscriptions),
		TotalMessages:       h.totalMessages.Load(),
		DroppedDeliveries:   h.dropped.Load(),
		Uptime:              time.Since(h.startTime).String(),
	}
}

func (h *channelHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for _, ch := range h.channels {
		close(ch.queue)
	}
	h.channels = make(map[string]*hubChannel)
	h.subscriptions = make(map[string]Subscription)
	return nil
}
