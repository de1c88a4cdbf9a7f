package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const EventSlideChange = "slide-change"

type Message struct {
	Channel     string
	Event       string
	Data        json.RawMessage
	PublishedAt time.Time
}

// SlideChange is the wire payload of a slide-change broadcast.
type SlideChange struct {
	SlideIndex int `json:"slideIndex"`
}

func NewSlideChangeMessage(uid string, slideIndex int, now time.Time) (Message, error) {
	data, err := json.Marshal(SlideChange{SlideIndex: slideIndex})
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal slide change: %w", err)
	}
	return Message{
		Channel:     NewPresentationChannel(uid).Name(),
		Event:       EventSlideChange,
		Data:        data,
		PublishedAt: now,
	}, nil
}

func (m Message) IsValid() bool {
	return m.Channel != "" && m.Event != ""
}

func (m Message) String() string {
	return m.Event + "@" + m.Channel + ": " + string(m.Data)
}
