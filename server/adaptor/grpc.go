package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ponyo877/livedeck/livepb"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var errInvalidSlideIndex = status.Error(codes.InvalidArgument, "slide_index must be a non-negative integer")

type grpcCredentials struct {
	identity       *domain.Identity
	presenterUIDs  []string
	presenterToken string
}

func (c grpcCredentials) presenterContext() domain.PresenterContext {
	return domain.NewPresenterContext(c.identity, c.presenterUIDs)
}

// credentials reads the same tokens the HTTP surface takes from cookies.
// Invalid tokens are ignored.
func (a *Adaptor) credentials(ctx context.Context) grpcCredentials {
	var creds grpcCredentials
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return creds
	}
	if values := md.Get(livepb.MetadataAuthorization); len(values) > 0 {
		raw := strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		if identity, err := a.tokens.ParseIdentity(raw); err == nil {
			creds.identity = identity
		}
	}
	if values := md.Get(livepb.MetadataPresenterToken); len(values) > 0 {
		if uids, err := a.tokens.ParsePresenter(values[0]); err == nil {
			creds.presenterUIDs = uids
			creds.presenterToken = values[0]
		}
	}
	return creds
}

func (a *Adaptor) AuthorizePresenter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	creds := a.credentials(ctx)
	presentation, err := a.uc.Reconciler.AuthorizePresenter(ctx,
		livepb.GetString(in, livepb.FieldPresentationUID),
		livepb.GetString(in, livepb.FieldPassword),
		creds.identity,
	)
	if err != nil {
		return nil, a.toStatus(err)
	}
	token, err := a.tokens.IssuePresenter(presentation.UID, creds.presenterToken)
	if err != nil {
		return nil, a.toStatus(err)
	}
	return newStruct(map[string]any{
		livepb.FieldToken:          token,
		livepb.FieldPresentationID: presentation.ID,
	})
}

func (a *Adaptor) PublishSlideChange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	index, ok := livepb.GetIndex(in, livepb.FieldSlideIndex)
	if !ok {
		return nil, errInvalidSlideIndex
	}
	outcome, err := a.uc.Reconciler.Reconcile(ctx, usecase.ReportRequest{
		PresentationUID: livepb.GetString(in, livepb.FieldPresentationUID),
		SlideIndex:      index,
		IsPresenter:     true,
	}, a.credentials(ctx).presenterContext())
	if err != nil {
		return nil, a.toStatus(err)
	}
	return newStruct(map[string]any{livepb.FieldOutcome: outcome.String()})
}

func (a *Adaptor) ReportPosition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	index, ok := livepb.GetIndex(in, livepb.FieldSlideIndex)
	if !ok {
		return nil, errInvalidSlideIndex
	}
	outcome, err := a.uc.Reconciler.Reconcile(ctx, usecase.ReportRequest{
		SessionID:       livepb.GetString(in, livepb.FieldSessionID),
		PresentationUID: livepb.GetString(in, livepb.FieldPresentationUID),
		SlideIndex:      index,
	}, domain.PresenterContext{})
	if err != nil {
		return nil, a.toStatus(err)
	}
	return newStruct(map[string]any{livepb.FieldOutcome: outcome.String()})
}

func (a *Adaptor) GetSlideState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	index, known, err := a.uc.Broadcaster.CurrentSlide(ctx, livepb.GetString(in, livepb.FieldPresentationUID))
	if err != nil {
		return nil, a.toStatus(err)
	}
	var slideIndex any
	if known {
		slideIndex = index
	}
	return newStruct(map[string]any{
		livepb.FieldSlideIndex: slideIndex,
		livepb.FieldKnown:      known,
	})
}

func (a *Adaptor) ListActiveParticipants(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	participants, err := a.uc.Presence.ListActiveForPresenter(ctx,
		livepb.GetInt(in, livepb.FieldPresentationID),
		a.credentials(ctx).presenterContext(),
	)
	if err != nil {
		return nil, a.toStatus(err)
	}

	list := make([]any, len(participants))
	for i, p := range participants {
		var currentSlide any
		if p.CurrentSlide != nil {
			currentSlide = *p.CurrentSlide
		}
		list[i] = map[string]any{
			livepb.FieldSessionID:    p.SessionID,
			livepb.FieldName:         p.Name,
			livepb.FieldCurrentSlide: currentSlide,
			livepb.FieldLastActivity: p.LastActivity.Format(time.RFC3339),
		}
	}
	return newStruct(map[string]any{livepb.FieldParticipants: list})
}

func (a *Adaptor) Subscribe(in *structpb.Struct, stream livepb.LiveService_SubscribeServer) error {
	ctx := stream.Context()
	channel := livepb.GetString(in, livepb.FieldChannel)
	if channel == "" {
		return status.Error(codes.InvalidArgument, "channel is required")
	}

	remote := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		remote = p.Addr.String()
	}
	connID := uuid.New().String()
	deliver := make(chan domain.Message, deliverBuffer)
	if err := a.subscribe(ctx, connID, a.credentials(ctx).identity, channel, remote, deliver); err != nil {
		return a.toStatus(err)
	}
	sub := domain.NewSubscription(connID, channel, remote)
	defer a.hub.Unsubscribe(sub.ID)

	logger := a.logger.With(slog.String("connID", connID), slog.String("channel", channel))
	logger.Debug("Stream subscribed", slog.String("remote", remote))

	for {
		select {
		case msg := <-deliver:
			out, err := messageStruct(msg)
			if err != nil {
				logger.Warn("Skipping undeliverable message", slog.Any("error", err))
				continue
			}
			if err := stream.Send(out); err != nil {
				logger.Debug("Stream send failed", slog.Any("error", err))
				return err
			}
		case <-ctx.Done():
			return nil
		case <-a.ctx.Done():
			return status.Error(codes.Unavailable, "server shutting down")
		}
	}
}

func messageStruct(msg domain.Message) (*structpb.Struct, error) {
	var data any
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, err
		}
	}
	return structpb.NewStruct(map[string]any{
		livepb.FieldChannel:     msg.Channel,
		livepb.FieldEvent:       msg.Event,
		livepb.FieldData:        data,
		livepb.FieldPublishedAt: msg.PublishedAt.Format(time.RFC3339Nano),
	})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := livepb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}

func (a *Adaptor) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrPublishFailed):
		code = codes.Unavailable
	default:
		a.logger.Error("gRPC request failed", slog.Any("error", err))
		return status.Error(codes.Internal, "internal error")
	}
	if code == codes.PermissionDenied {
		return status.Error(code, "permission denied")
	}
	return status.Error(code, err.Error())
}

func NewUnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("gRPC request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}

func NewStreamLogger(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logger.Info("gRPC stream closed",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return err
	}
}
