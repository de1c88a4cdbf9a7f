package usecase

import (
	"context"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
)

type PresentationRepository interface {
	FindPresentationByUID(ctx context.Context, uid string) (domain.Presentation, error)
	FindPresentationByID(ctx context.Context, id int64) (domain.Presentation, error)
}

type ParticipantRepository interface {
	PresentationRepository

	UpsertParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	FindParticipant(ctx context.Context, sessionID string, presentationID int64) (domain.Participant, error)
	// presentationID 0 updates every row of the session.
	UpdateParticipantSlide(ctx context.Context, sessionID string, presentationID int64, slide int, at time.Time) (int64, error)
	DeactivateParticipants(ctx context.Context, sessionID string, at time.Time) error
	DeactivateStaleParticipants(ctx context.Context, presentationID int64, cutoff time.Time) (int64, error)
	ListActiveParticipants(ctx context.Context, presentationID int64) ([]domain.Participant, error)
}

type SlideStateRepository interface {
	PresentationRepository

	SaveSlideState(ctx context.Context, presentationID int64, slideIndex int, at time.Time) error
	GetSlideState(ctx context.Context, presentationID int64) (int, error)
}

type AnalyticRepository interface {
	PresentationRepository

	FindParticipant(ctx context.Context, sessionID string, presentationID int64) (domain.Participant, error)
	CreateAnalytic(ctx context.Context, event domain.AnalyticEvent) (int64, error)
	ListAnalytics(ctx context.Context, presentationID int64, limit, offset int) ([]domain.AnalyticEvent, error)
	SummarizeAnalytics(ctx context.Context, presentationID int64, since time.Time) (domain.AnalyticsSummary, error)
}

type Repository interface {
	ParticipantRepository
	SlideStateRepository
	AnalyticRepository
}
