package domain

import (
	"fmt"
	"slices"
)

type Presentation struct {
	ID                int64
	UID               string
	Title             string
	OwnerID           int64
	IsPublic          bool
	PresenterPassword string
	SlideCount        int
}

func (p Presentation) OwnedBy(identity *Identity) bool {
	return identity != nil && identity.UserID == p.OwnerID
}

func (p Presentation) PublicChannel() Channel {
	return NewPresentationChannel(p.UID)
}

// CheckSlideIndex rejects indices outside [0, SlideCount-1]. An unknown
// slide count (zero) only rejects negative indices.
func (p Presentation) CheckSlideIndex(index int) error {
	if index < 0 {
		return fmt.Errorf("slide index %d is negative: %w", index, ErrInvalidRequest)
	}
	if p.SlideCount > 0 && index >= p.SlideCount {
		return fmt.Errorf("slide index %d out of range [0, %d): %w", index, p.SlideCount, ErrInvalidRequest)
	}
	return nil
}

type Identity struct {
	UserID int64
	Name   string
}

// PresenterContext is the proof a request carries that it may drive a
// presentation: the owner's identity, or presenter tokens obtained through
// the presenter password flow.
type PresenterContext struct {
	Identity         *Identity
	PresentationUIDs []string
}

func NewPresenterContext(identity *Identity, uids []string) PresenterContext {
	return PresenterContext{
		Identity:         identity,
		PresentationUIDs: uids,
	}
}

func (c PresenterContext) IsEmpty() bool {
	return c.Identity == nil && len(c.PresentationUIDs) == 0
}

func (c PresenterContext) CanPresent(p Presentation) bool {
	return p.OwnedBy(c.Identity) || slices.Contains(c.PresentationUIDs, p.UID)
}
