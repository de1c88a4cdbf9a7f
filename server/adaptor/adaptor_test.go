package adaptor_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ponyo877/livedeck/server/adaptor"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/repository"
	"github.com/ponyo877/livedeck/server/usecase"
)

const (
	testChannelKey    = "test-key"
	testChannelSecret = "test-secret"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type testServer struct {
	repo    *repository.Repository
	hub     domain.Hub
	tokens  *adaptor.TokenService
	adaptor *adaptor.Adaptor
	http    *httptest.Server
	deck    domain.Presentation
	secret  domain.Presentation
}

// newTestServer wires the real usecases over an in-memory database. User 7
// owns the public "deck" (password "pw"); user 8 owns the private "secret".
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := newTestLogger()
	ctx := context.Background()

	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	fixtures := repository.Fixtures{Presentations: []repository.PresentationFixture{
		{UID: "deck", Title: "Deck", OwnerID: 7, Public: true, PresenterPassword: "pw", Slides: []string{"a", "b", "c"}},
		{UID: "secret", Title: "Secret", OwnerID: 8, Slides: []string{"only"}},
	}}
	if _, err := repo.Seed(ctx, fixtures, logger); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	hub := domain.NewHub()
	presence := usecase.NewPresence(repo, logger)
	broadcaster := usecase.NewBroadcaster(repo, hub, logger)
	sink := usecase.NewAnalyticsSink(repo, 64, 1, logger)
	tokens := adaptor.NewTokenService("jwt-secret", time.Hour)

	a := adaptor.NewAdaptor(adaptor.Usecases{
		Authorizer:  usecase.NewAuthorizer(repo, time.Minute, logger),
		Presence:    presence,
		Broadcaster: broadcaster,
		Reconciler:  usecase.NewReconciler(repo, presence, broadcaster, logger),
		Analytics:   sink,
	}, hub, tokens, adaptor.Options{
		ReadTimeout:   5 * time.Second,
		ChannelKey:    testChannelKey,
		ChannelSecret: testChannelSecret,
	}, logger)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		a.Close()
		srv.Close()
		sink.Close()
		hub.Close()
	})

	s := &testServer{repo: repo, hub: hub, tokens: tokens, adaptor: a, http: srv}
	s.deck, _ = repo.FindPresentationByUID(ctx, "deck")
	s.secret, _ = repo.FindPresentationByUID(ctx, "secret")
	return s
}

func (s *testServer) identityToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.tokens.IssueIdentity(domain.Identity{UserID: userID}, time.Hour)
	if err != nil {
		t.Fatalf("IssueIdentity failed: %v", err)
	}
	return token
}

func (s *testServer) presenterToken(t *testing.T, uid string) string {
	t.Helper()
	token, err := s.tokens.IssuePresenter(uid, "")
	if err != nil {
		t.Fatalf("IssuePresenter failed: %v", err)
	}
	return token
}

// waitForSubscribers polls until channel has n subscribers.
func (s *testServer) waitForSubscribers(t *testing.T, channel string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.SubscriberCount(channel) != n {
		if time.Now().After(deadline) {
			t.Fatalf("channel %s has %d subscribers, want %d", channel, s.hub.SubscriberCount(channel), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
