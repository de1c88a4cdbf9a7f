package domain

// Hub fans out published messages to the subscribers of a channel. It holds
// no message history: a message published while nobody listens is gone.
type Hub interface {
	Subscribe(sub Subscription, deliver chan<- Message) error
	Unsubscribe(subscriptionID string) error

	Publish(msg Message) error

	SubscriberCount(channel string) int
	ActiveChannels() []string
	Stats() HubStats

	Close() error
}

type HubStats struct {
	ActiveChannels      int
	ActiveSubscriptions int
	TotalMessages       int64
	DroppedDeliveries   int64
	Uptime              string
}
