package adaptor

import (
	"context"

	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/usecase"
)

type Authorizer interface {
	Authorize(ctx context.Context, identity *domain.Identity, channelName string) bool
}

type Presence interface {
	Register(ctx context.Context, in usecase.RegisterInput) (domain.Participant, error)
	Disconnect(ctx context.Context, sessionID string) error
	ListActiveForPresenter(ctx context.Context, presentationID int64, pc domain.PresenterContext) ([]domain.Participant, error)
}

type Broadcaster interface {
	CurrentSlide(ctx context.Context, presentationUID string) (int, bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, req usecase.ReportRequest, pc domain.PresenterContext) (usecase.Outcome, error)
	AuthorizePresenter(ctx context.Context, uid, password string, identity *domain.Identity) (domain.Presentation, error)
}

type Analytics interface {
	Record(event domain.AnalyticEvent) error
	List(ctx context.Context, presentationID int64, page int, pc domain.PresenterContext) ([]domain.AnalyticEvent, error)
	Summary(ctx context.Context, presentationID int64, pc domain.PresenterContext) (domain.AnalyticsSummary, error)
}
