package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ponyo877/livedeck/server/domain"
)

const DefaultLivenessWindow = 45 * time.Second

// Presence tracks which participants are connected to which presentation.
type Presence struct {
	repo   ParticipantRepository
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type PresenceOption func(*Presence)

// WithLivenessWindow sets how long a silent participant counts as active.
// Zero disables the read-time staleness check.
func WithLivenessWindow(window time.Duration) PresenceOption {
	return func(p *Presence) {
		p.window = window
	}
}

func WithPresenceClock(now func() time.Time) PresenceOption {
	return func(p *Presence) {
		p.now = now
	}
}

func NewPresence(repo ParticipantRepository, logger *slog.Logger, opts ...PresenceOption) *Presence {
	p := &Presence{
		repo:   repo,
		window: DefaultLivenessWindow,
		now:    time.Now,
		logger: logger.With(slog.String("component", "presence_registry")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type RegisterInput struct {
	PresentationUID string
	SessionID       string
	DisplayName     string
	Identity        *domain.Identity
	Device          domain.DeviceInfo
}

// Register upserts the participant for (session, presentation). A missing
// session id is minted here and returned on the participant.
func (p *Presence) Register(ctx context.Context, in RegisterInput) (domain.Participant, error) {
	if in.PresentationUID == "" {
		return domain.Participant{}, fmt.Errorf("presentation uid is required: %w", domain.ErrInvalidRequest)
	}
	presentation, err := p.repo.FindPresentationByUID(ctx, in.PresentationUID)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("error getting presentation %s: %w", in.PresentationUID, err)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}

	participant := domain.NewParticipant(sessionID, in.DisplayName, presentation.ID, in.Identity, in.Device, p.now().UTC())
	registered, err := p.repo.UpsertParticipant(ctx, participant)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("error registering participant: %w", err)
	}

	p.logger.Debug("Participant registered",
		slog.String("sessionID", registered.SessionID),
		slog.String("presentationUID", presentation.UID),
	)
	return registered, nil
}

// ReportPosition records where the session currently is. With an empty
// presentationUID every row of the session is updated.
func (p *Presence) ReportPosition(ctx context.Context, sessionID, presentationUID string, slideIndex int) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required: %w", domain.ErrInvalidRequest)
	}
	if slideIndex < 0 {
		return fmt.Errorf("slide index %d is negative: %w", slideIndex, domain.ErrInvalidRequest)
	}

	var presentationID int64
	if presentationUID != "" {
		presentation, err := p.repo.FindPresentationByUID(ctx, presentationUID)
		if err != nil {
			return fmt.Errorf("error getting presentation %s: %w", presentationUID, err)
		}
		presentationID = presentation.ID
	}

	updated, err := p.repo.UpdateParticipantSlide(ctx, sessionID, presentationID, slideIndex, p.now().UTC())
	if err != nil {
		return fmt.Errorf("error updating slide position: %w", err)
	}
	if updated == 0 {
		return fmt.Errorf("participant for session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// Disconnect marks the session inactive. Unknown sessions are not an error.
func (p *Presence) Disconnect(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required: %w", domain.ErrInvalidRequest)
	}
	if err := p.repo.DeactivateParticipants(ctx, sessionID, p.now().UTC()); err != nil {
		return fmt.Errorf("error disconnecting session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Presence) ListActive(ctx context.Context, presentationUID string) ([]domain.Participant, error) {
	presentation, err := p.repo.FindPresentationByUID(ctx, presentationUID)
	if err != nil {
		return nil, fmt.Errorf("error getting presentation %s: %w", presentationUID, err)
	}
	return p.listActive(ctx, presentation)
}

func (p *Presence) ListActiveByID(ctx context.Context, presentationID int64) ([]domain.Participant, error) {
	presentation, err := p.repo.FindPresentationByID(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("error getting presentation %d: %w", presentationID, err)
	}
	return p.listActive(ctx, presentation)
}

// ListActiveForPresenter serves the presenter's audience panel.
func (p *Presence) ListActiveForPresenter(ctx context.Context, presentationID int64, pc domain.PresenterContext) ([]domain.Participant, error) {
	presentation, err := p.repo.FindPresentationByID(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("error getting presentation %d: %w", presentationID, err)
	}
	if !pc.CanPresent(presentation) {
		return nil, fmt.Errorf("participants of presentation %d: %w", presentationID, domain.ErrUnauthorized)
	}
	return p.listActive(ctx, presentation)
}

func (p *Presence) listActive(ctx context.Context, presentation domain.Presentation) ([]domain.Participant, error) {
	now := p.now().UTC()
	if p.window > 0 {
		expired, err := p.repo.DeactivateStaleParticipants(ctx, presentation.ID, now.Add(-p.window))
		if err != nil {
			p.logger.Warn("Failed to expire stale participants",
				slog.Int64("presentationID", presentation.ID),
				slog.Any("error", err),
			)
		} else if expired > 0 {
			p.logger.Debug("Expired stale participants",
				slog.Int64("presentationID", presentation.ID),
				slog.Int64("count", expired),
			)
		}
	}

	participants, err := p.repo.ListActiveParticipants(ctx, presentation.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing participants: %w", err)
	}
	// rows the failed expiry left active are still filtered here
	live := participants[:0]
	for _, participant := range participants {
		if !participant.IsStale(now, p.window) {
			live = append(live, participant)
		}
	}
	return live, nil
}
