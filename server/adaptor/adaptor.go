package adaptor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ponyo877/livedeck/livepb"
	"github.com/ponyo877/livedeck/server/domain"
)

type Usecases struct {
	Authorizer  Authorizer
	Presence    Presence
	Broadcaster Broadcaster
	Reconciler  Reconciler
	Analytics   Analytics
}

type Options struct {
	ReadTimeout    time.Duration
	AllowedOrigins []string
	ChannelKey     string
	ChannelSecret  string
	SecureCookies  bool
}

// Adaptor exposes the usecases over HTTP, WebSocket and gRPC.
type Adaptor struct {
	uc     Usecases
	hub    domain.Hub
	tokens *TokenService
	opts   Options
	logger *slog.Logger

	// ctx bounds every long-lived subscriber; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	livepb.UnimplementedLiveServiceServer
}

func NewAdaptor(uc Usecases, hub domain.Hub, tokens *TokenService, opts Options, logger *slog.Logger) *Adaptor {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Adaptor{
		uc:     uc,
		hub:    hub,
		tokens: tokens,
		opts:   opts,
		logger: logger.With(slog.String("component", "adaptor")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close ends every open WebSocket connection and Subscribe stream.
func (a *Adaptor) Close() {
	a.cancel()
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrConflict)
}
