package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultDisplayName = "Anonymous"
	maxDisplayNameLen  = 255
)

type DeviceInfo struct {
	UserAgent string
	IP        string
}

type Participant struct {
	ID             int64
	SessionID      string
	Name           string
	PresentationID int64
	UserID         *int64
	CurrentSlide   *int
	IsActive       bool
	LastActivity   time.Time
	DeviceInfo     DeviceInfo
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewParticipant(sessionID, name string, presentationID int64, identity *Identity, device DeviceInfo, now time.Time) Participant {
	var userID *int64
	if identity != nil {
		id := identity.UserID
		userID = &id
	}
	return Participant{
		SessionID:      sessionID,
		Name:           NormalizeDisplayName(name),
		PresentationID: presentationID,
		UserID:         userID,
		IsActive:       true,
		LastActivity:   now,
		DeviceInfo:     device,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		name = string([]rune(name)[:maxDisplayNameLen])
	}
	return name
}

// IsStale reports whether the participant has been silent for longer than
// window. A non-positive window disables staleness.
func (p Participant) IsStale(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(p.LastActivity) > window
}

func (p Participant) String() string {
	state := "inactive"
	if p.IsActive {
		state = "active"
	}
	return p.Name + "@" + p.SessionID + "(" + state + ")"
}
