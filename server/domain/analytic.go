package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventTypeSlideView = "slide_view"
	maxEventTypeLen    = 255
)

type AnalyticEvent struct {
	ID              int64
	EventType       string
	SlideID         *int64
	Data            json.RawMessage
	SessionID       string
	PresentationUID string
	PresentationID  int64
	ParticipantID   *int64
	CreatedAt       time.Time
}

func (e AnalyticEvent) Validate() error {
	if e.SessionID == "" || e.PresentationUID == "" || e.EventType == "" {
		return fmt.Errorf("session id, presentation uid and event type are required: %w", ErrInvalidRequest)
	}
	if len(e.EventType) > maxEventTypeLen {
		return fmt.Errorf("event type longer than %d bytes: %w", maxEventTypeLen, ErrInvalidRequest)
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return fmt.Errorf("event data is not valid json: %w", ErrInvalidRequest)
	}
	return nil
}

type SlideViewCount struct {
	SlideID *int64
	Views   int64
}

type HourlyActivity struct {
	Hour  time.Time
	Count int64
}

type AnalyticsSummary struct {
	ViewCount          int64
	SlideViews         []SlideViewCount
	ActiveParticipants []HourlyActivity
}
