package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/ponyo877/livedeck/server/domain"
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeBroadcast
	OutcomePositionUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBroadcast:
		return "broadcast"
	case OutcomePositionUpdated:
		return "position_updated"
	default:
		return "none"
	}
}

// ReportRequest is one slide report from either a presenter or an audience
// member. Which path it takes depends on IsPresenter and the ids set.
type ReportRequest struct {
	SessionID       string
	PresentationUID string
	SlideIndex      int
	IsPresenter     bool
}

type Reconciler struct {
	repo        PresentationRepository
	presence    *Presence
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewReconciler(repo PresentationRepository, presence *Presence, broadcaster *Broadcaster, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:        repo,
		presence:    presence,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "session_reconciler")),
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, req ReportRequest, pc domain.PresenterContext) (Outcome, error) {
	switch {
	case req.IsPresenter && req.PresentationUID != "":
		authorized, err := r.canPresent(ctx, req.PresentationUID, pc)
		if err != nil {
			return OutcomeNone, err
		}
		if err := r.broadcaster.PublishSlideChange(ctx, req.PresentationUID, req.SlideIndex, authorized); err != nil {
			return OutcomeNone, err
		}
		return OutcomeBroadcast, nil
	case req.SessionID != "":
		if err := r.presence.ReportPosition(ctx, req.SessionID, req.PresentationUID, req.SlideIndex); err != nil {
			return OutcomeNone, err
		}
		return OutcomePositionUpdated, nil
	default:
		return OutcomeNone, fmt.Errorf("either a presenter report or a session id is required: %w", domain.ErrInvalidRequest)
	}
}

// canPresent skips the lookup when the caller carries no presenter proof, so
// the broadcaster rejects before touching storage.
func (r *Reconciler) canPresent(ctx context.Context, uid string, pc domain.PresenterContext) (bool, error) {
	if pc.IsEmpty() {
		return false, nil
	}
	presentation, err := r.repo.FindPresentationByUID(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("error getting presentation %s: %w", uid, err)
	}
	return pc.CanPresent(presentation), nil
}

// AuthorizePresenter is the presenter password flow. The owner passes without
// a password; everyone else needs the presentation's non-empty password.
func (r *Reconciler) AuthorizePresenter(ctx context.Context, uid, password string, identity *domain.Identity) (domain.Presentation, error) {
	presentation, err := r.repo.FindPresentationByUID(ctx, uid)
	if err != nil {
		return domain.Presentation{}, fmt.Errorf("error getting presentation %s: %w", uid, err)
	}
	if presentation.OwnedBy(identity) {
		return presentation, nil
	}
	if presentation.PresenterPassword == "" || password == "" ||
		subtle.ConstantTimeCompare([]byte(presentation.PresenterPassword), []byte(password)) != 1 {
		r.logger.Info("Presenter password rejected", slog.String("presentationUID", uid))
		return domain.Presentation{}, fmt.Errorf("presenter access to %s: %w", uid, domain.ErrUnauthorized)
	}
	return presentation, nil
}
