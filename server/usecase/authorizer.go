package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ponyo877/livedeck/server/domain"
)

const (
	DefaultAuthorizerCacheTTL  = 60 * time.Second
	DefaultAuthorizerCacheSize = 1024
)

// Authorizer decides whether a connection may subscribe to a channel.
// Presentation ownership is read through a short-lived cache, so a change of
// owner or visibility takes effect within one TTL.
type Authorizer struct {
	repo PresentationRepository
	// nil when caching is disabled
	cache  *expirable.LRU[int64, domain.Presentation]
	logger *slog.Logger
}

// NewAuthorizer caches up to DefaultAuthorizerCacheSize presentations for
// ttl each. A non-positive ttl disables the cache.
func NewAuthorizer(repo PresentationRepository, ttl time.Duration, logger *slog.Logger) *Authorizer {
	a := &Authorizer{
		repo:   repo,
		logger: logger.With(slog.String("component", "channel_authorizer")),
	}
	if ttl > 0 {
		a.cache = expirable.NewLRU[int64, domain.Presentation](DefaultAuthorizerCacheSize, nil, ttl)
	}
	return a
}

// Authorize never fails: malformed names, missing presentations and storage
// errors all deny.
func (a *Authorizer) Authorize(ctx context.Context, identity *domain.Identity, channelName string) bool {
	channel := domain.ParseChannel(channelName)

	switch channel.Kind {
	case domain.ChannelPublicPresentation:
		return true
	case domain.ChannelPrivateUser:
		return identity != nil && identity.UserID == channel.ID
	case domain.ChannelPrivatePresentation:
		p, ok := a.presentation(ctx, channel.ID)
		if !ok {
			return false
		}
		return p.OwnedBy(identity) || p.IsPublic
	case domain.ChannelPrivatePresenter:
		p, ok := a.presentation(ctx, channel.ID)
		if !ok {
			return false
		}
		return p.OwnedBy(identity)
	default:
		return false
	}
}

// Invalidate drops cached presentations, for callers that know they
// changed.
func (a *Authorizer) Invalidate(presentationIDs ...int64) {
	if a.cache == nil {
		return
	}
	for _, id := range presentationIDs {
		a.cache.Remove(id)
	}
}

func (a *Authorizer) presentation(ctx context.Context, id int64) (domain.Presentation, bool) {
	if a.cache != nil {
		if p, ok := a.cache.Get(id); ok {
			return p, true
		}
	}

	p, err := a.repo.FindPresentationByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.Error("Failed to resolve presentation for channel authorization",
				slog.Int64("presentationID", id),
				slog.Any("error", err),
			)
		}
		return domain.Presentation{}, false
	}
	if a.cache != nil {
		a.cache.Add(id, p)
	}
	return p, true
}
