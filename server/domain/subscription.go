package domain

import (
	"time"
)

type Subscription struct {
	ID           string
	Channel      string
	Remote       string
	SubscribedAt time.Time
}

func NewSubscription(connID, channel, remote string) Subscription {
	return Subscription{
		ID:           connID + "/" + channel,
		Channel:      channel,
		Remote:       remote,
		SubscribedAt: time.Now(),
	}
}

func (s Subscription) IsValid() bool {
	return s.ID != "" && s.Channel != ""
}

func (s Subscription) String() string {
	return s.Remote + "@" + s.Channel
}
