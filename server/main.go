package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ponyo877/livedeck/livepb"
	"github.com/ponyo877/livedeck/server/adaptor"
	"github.com/ponyo877/livedeck/server/config"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/logging"
	"github.com/ponyo877/livedeck/server/repository"
	"github.com/ponyo877/livedeck/server/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logging.New(os.Getenv("LIVEDECK_LOG_LEVEL"))
	cfg, err := config.Load(logger, "livedeck")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Server shut down successfully.")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	rp := repository.NewRepository(db)
	if err := rp.Migrate(ctx); err != nil {
		return err
	}
	fixtures, err := repository.LoadFixtures(cfg.Database.Fixtures)
	if err != nil {
		return err
	}
	if _, err := rp.Seed(ctx, fixtures, logger); err != nil {
		return err
	}
	logger.Info("Database ready",
		slog.String("path", cfg.Database.Path),
		slog.Int("fixtures", len(fixtures.Presentations)),
	)

	hub := domain.NewHub()
	presence := usecase.NewPresence(rp, logger, usecase.WithLivenessWindow(cfg.Presence.LivenessWindow))
	broadcaster := usecase.NewBroadcaster(rp, hub, logger, usecase.WithStrictBounds(cfg.Broadcaster.StrictBounds))
	sink := usecase.NewAnalyticsSink(rp, cfg.Analytics.QueueSize, cfg.Analytics.Workers, logger)
	tokens := adaptor.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.PresenterTokenTTL)
	authorizer := usecase.NewAuthorizer(rp, cfg.Authorizer.CacheTTL, logger)
	go reloadFixturesOnHangup(ctx, rp, cfg.Database.Fixtures, authorizer, logger)

	ad := adaptor.NewAdaptor(adaptor.Usecases{
		Authorizer:  authorizer,
		Presence:    presence,
		Broadcaster: broadcaster,
		Reconciler:  usecase.NewReconciler(rp, presence, broadcaster, logger),
		Analytics:   sink,
	}, hub, tokens, adaptor.Options{
		ReadTimeout:    cfg.Transport.ReadTimeout,
		AllowedOrigins: cfg.Transport.AllowedOrigins,
		ChannelKey:     cfg.Auth.ChannelKey,
		ChannelSecret:  cfg.Auth.ChannelSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           ad.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(adaptor.NewUnaryLogger(logger)),
		grpc.ChainStreamInterceptor(adaptor.NewStreamLogger(logger)),
	)
	livepb.RegisterLiveServiceServer(grpcServer, ad)
	reflection.Register(grpcServer)

	errs := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		logger.Info("gRPC server listening", slog.String("address", cfg.Server.GRPCAddress))
		if err := grpcServer.Serve(lis); err != nil {
			errs <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errs:
		logger.Error("Server failed", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ad.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", slog.Any("error", err))
	}
	grpcServer.GracefulStop()
	hub.Close()
	sink.Close()
	return serveErr
}

// reloadFixturesOnHangup re-seeds presentations on SIGHUP and evicts them from
// the authorizer cache, so owner and visibility edits apply immediately.
func reloadFixturesOnHangup(ctx context.Context, rp *repository.Repository, path string, authorizer *usecase.Authorizer, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		fixtures, err := repository.LoadFixtures(path)
		if err != nil {
			logger.Error("Failed to reload fixtures", slog.Any("error", err))
			continue
		}
		ids, err := rp.Seed(ctx, fixtures, logger)
		authorizer.Invalidate(ids...)
		if err != nil {
			logger.Error("Failed to reseed fixtures", slog.Any("error", err))
			continue
		}
		logger.Info("Fixtures reloaded", slog.String("path", path), slog.Int("presentations", len(ids)))
	}
}
