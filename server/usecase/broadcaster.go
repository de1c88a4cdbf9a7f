package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
)

// Broadcaster owns the authoritative slide index of every live presentation
// and pushes changes to the presentation's public channel.
type Broadcaster struct {
	repo   SlideStateRepository
	hub    domain.Hub
	strict bool

	mu     sync.RWMutex
	slides map[string]int

	now    func() time.Time
	logger *slog.Logger
}

type BroadcasterOption func(*Broadcaster)

// WithStrictBounds rejects indices past the last slide when the slide count
// is known.
func WithStrictBounds(strict bool) BroadcasterOption {
	return func(b *Broadcaster) {
		b.strict = strict
	}
}

func WithBroadcasterClock(now func() time.Time) BroadcasterOption {
	return func(b *Broadcaster) {
		b.now = now
	}
}

func NewBroadcaster(repo SlideStateRepository, hub domain.Hub, logger *slog.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		repo:   repo,
		hub:    hub,
		slides: make(map[string]int),
		now:    time.Now,
		logger: logger.With(slog.String("component", "state_broadcaster")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broadcaster) PublishSlideChange(ctx context.Context, presentationUID string, slideIndex int, authenticatedAsPresenter bool) error {
	if !authenticatedAsPresenter {
		return fmt.Errorf("slide change for %s: %w", presentationUID, domain.ErrUnauthorized)
	}
	if slideIndex < 0 {
		return fmt.Errorf("slide index %d is negative: %w", slideIndex, domain.ErrInvalidRequest)
	}

	presentation, err := b.repo.FindPresentationByUID(ctx, presentationUID)
	if err != nil {
		return fmt.Errorf("error getting presentation %s: %w", presentationUID, err)
	}
	if b.strict {
		if err := presentation.CheckSlideIndex(slideIndex); err != nil {
			return err
		}
	}

	now := b.now().UTC()
	msg, err := domain.NewSlideChangeMessage(presentation.UID, slideIndex, now)
	if err != nil {
		return err
	}

	// Held across publish so two presenters cannot interleave state and
	// broadcast order.
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slides[presentation.UID] = slideIndex
	if err := b.repo.SaveSlideState(ctx, presentation.ID, slideIndex, now); err != nil {
		b.logger.Warn("Failed to persist slide state",
			slog.String("presentationUID", presentation.UID),
			slog.Int("slideIndex", slideIndex),
			slog.Any("error", err),
		)
	}

	if err := b.hub.Publish(msg); err != nil {
		b.logger.Error("Failed to broadcast slide change",
			slog.String("channel", msg.Channel),
			slog.Int("slideIndex", slideIndex),
			slog.Any("error", err),
		)
		return fmt.Errorf("error broadcasting slide change: %w", err)
	}

	b.logger.Debug("Slide change broadcast",
		slog.String("channel", msg.Channel),
		slog.Int("slideIndex", slideIndex),
		slog.Int("subscribers", b.hub.SubscriberCount(msg.Channel)),
	)
	return nil
}

// CurrentSlide returns the authoritative index, falling back to the stored
// one after a restart. known is false when no slide change was ever recorded.
func (b *Broadcaster) CurrentSlide(ctx context.Context, presentationUID string) (int, bool, error) {
	b.mu.RLock()
	index, ok := b.slides[presentationUID]
	b.mu.RUnlock()
	if ok {
		return index, true, nil
	}

	presentation, err := b.repo.FindPresentationByUID(ctx, presentationUID)
	if err != nil {
		return 0, false, fmt.Errorf("error getting presentation %s: %w", presentationUID, err)
	}

	index, err = b.repo.GetSlideState(ctx, presentation.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error getting slide state: %w", err)
	}

	b.mu.Lock()
	if _, ok := b.slides[presentation.UID]; !ok {
		b.slides[presentation.UID] = index
	}
	index = b.slides[presentation.UID]
	b.mu.Unlock()
	return index, true, nil
}
