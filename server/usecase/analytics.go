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

const (
	DefaultAnalyticsQueueSize = 1024
	DefaultAnalyticsWorkers   = 2
	AnalyticsPageSize         = 50
	summaryWindow             = 24 * time.Hour
)

var ErrSinkClosed = errors.New("analytics sink closed")

// AnalyticsSink records audience events off the request path. Record never
// blocks; the workers resolve ids and write in the background.
type AnalyticsSink struct {
	repo   AnalyticRepository
	queue  chan domain.AnalyticEvent
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
	logger *slog.Logger
}

type AnalyticsOption func(*AnalyticsSink)

func WithAnalyticsClock(now func() time.Time) AnalyticsOption {
	return func(s *AnalyticsSink) {
		s.now = now
	}
}

func NewAnalyticsSink(repo AnalyticRepository, queueSize, workers int, logger *slog.Logger, opts ...AnalyticsOption) *AnalyticsSink {
	if queueSize <= 0 {
		queueSize = DefaultAnalyticsQueueSize
	}
	if workers <= 0 {
		workers = DefaultAnalyticsWorkers
	}
	s := &AnalyticsSink{
		repo:   repo,
		queue:  make(chan domain.AnalyticEvent, queueSize),
		now:    time.Now,
		logger: logger.With(slog.String("component", "analytics_sink")),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Record validates and enqueues an event. Only validation and a closed sink
// are reported; a full queue drops the event with a warning.
func (s *AnalyticsSink) Record(event domain.AnalyticEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn("Analytics queue full, dropping event",
			slog.String("eventType", event.EventType),
			slog.String("presentationUID", event.PresentationUID),
		)
	}
	return nil
}

// Close stops accepting events and waits until the queue is drained.
func (s *AnalyticsSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *AnalyticsSink) worker() {
	defer s.wg.Done()
	for event := range s.queue {
		s.store(context.Background(), event)
	}
}

func (s *AnalyticsSink) store(ctx context.Context, event domain.AnalyticEvent) {
	presentation, err := s.repo.FindPresentationByUID(ctx, event.PresentationUID)
	if err != nil {
		s.logger.Warn("Dropping analytic event for unresolved presentation",
			slog.String("presentationUID", event.PresentationUID),
			slog.Any("error", err),
		)
		return
	}
	event.PresentationID = presentation.ID

	participant, err := s.repo.FindParticipant(ctx, event.SessionID, presentation.ID)
	switch {
	case err == nil:
		id := participant.ID
		event.ParticipantID = &id
	case !errors.Is(err, domain.ErrNotFound):
		s.logger.Warn("Failed to resolve participant for analytic event",
			slog.String("sessionID", event.SessionID),
			slog.Any("error", err),
		)
	}

	if _, err := s.repo.CreateAnalytic(ctx, event); err != nil {
		s.logger.Error("Failed to store analytic event",
			slog.String("eventType", event.EventType),
			slog.Int64("presentationID", presentation.ID),
			slog.Any("error", err),
		)
	}
}

// List returns one page (1-based) of events, newest first.
func (s *AnalyticsSink) List(ctx context.Context, presentationID int64, page int, pc domain.PresenterContext) ([]domain.AnalyticEvent, error) {
	if err := s.authorize(ctx, presentationID, pc); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	events, err := s.repo.ListAnalytics(ctx, presentationID, AnalyticsPageSize, (page-1)*AnalyticsPageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing analytics: %w", err)
	}
	return events, nil
}

func (s *AnalyticsSink) Summary(ctx context.Context, presentationID int64, pc domain.PresenterContext) (domain.AnalyticsSummary, error) {
	if err := s.authorize(ctx, presentationID, pc); err != nil {
		return domain.AnalyticsSummary{}, err
	}
	summary, err := s.repo.SummarizeAnalytics(ctx, presentationID, s.now().UTC().Add(-summaryWindow))
	if err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("error summarizing analytics: %w", err)
	}
	return summary, nil
}

func (s *AnalyticsSink) authorize(ctx context.Context, presentationID int64, pc domain.PresenterContext) error {
	presentation, err := s.repo.FindPresentationByID(ctx, presentationID)
	if err != nil {
		return fmt.Errorf("error getting presentation %d: %w", presentationID, err)
	}
	if !pc.CanPresent(presentation) {
		return fmt.Errorf("analytics of presentation %d: %w", presentationID, domain.ErrUnauthorized)
	}
	return nil
}
