package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/repository"
	"github.com/ponyo877/livedeck/server/usecase"
)

func newTestPresence(t *testing.T, window time.Duration) (*usecase.Presence, *fakeClock, *repository.Repository) {
	t.Helper()
	r := newTestRepository(t)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	p := usecase.NewPresence(r, newTestLogger(),
		usecase.WithLivenessWindow(window),
		usecase.WithPresenceClock(clock.Now),
	)
	return p, clock, r
}

func TestRegisterIsIdempotent(t *testing.T) {
	p, clock, _ := newTestPresence(t, 0)
	ctx := context.Background()

	first, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: "s1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := p.ReportPosition(ctx, "s1", "deck", 1); err != nil {
		t.Fatalf("ReportPosition failed: %v", err)
	}

	clock.Advance(time.Second)
	second, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: "s1", DisplayName: "Bob"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if second.ID != first.ID || second.SessionID != "s1" {
		t.Errorf("re-register changed identity: %+v vs %+v", second, first)
	}
	if second.Name != "Bob" {
		t.Errorf("name = %q, want Bob", second.Name)
	}
	if second.CurrentSlide == nil || *second.CurrentSlide != 1 {
		t.Errorf("current slide lost: %v", second.CurrentSlide)
	}

	active, err := p.ListActive(ctx, "deck")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Bob" {
		t.Errorf("expected exactly Bob, got %v", active)
	}
}

func TestRegisterDefaults(t *testing.T) {
	p, _, _ := newTestPresence(t, 0)
	ctx := context.Background()

	got, err := p.Register(ctx, usecase.RegisterInput{
		PresentationUID: "deck",
		DisplayName:     "   ",
		Identity:        &domain.Identity{UserID: 3},
		Device:          domain.DeviceInfo{UserAgent: "test-agent", IP: "10.0.0.1"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got.SessionID == "" {
		t.Error("expected a minted session id")
	}
	if got.Name != domain.DefaultDisplayName {
		t.Errorf("name = %q, want %q", got.Name, domain.DefaultDisplayName)
	}
	if got.UserID == nil || *got.UserID != 3 {
		t.Errorf("user id not recorded: %v", got.UserID)
	}
	if got.CurrentSlide != nil {
		t.Errorf("new participant has a slide: %d", *got.CurrentSlide)
	}
	if got.DeviceInfo.UserAgent != "test-agent" {
		t.Errorf("device info not recorded: %+v", got.DeviceInfo)
	}

	if _, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReportPosition(t *testing.T) {
	p, _, r := newTestPresence(t, 0)
	ctx := context.Background()

	if err := p.ReportPosition(ctx, "ghost", "", 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown session, got %v", err)
	}
	deck := mustPresentation(t, r, "deck")
	if _, err := r.FindParticipant(ctx, "ghost", deck.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("report created a participant: %v", err)
	}

	if _, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: "s1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := p.ReportPosition(ctx, "s1", "", -1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for negative index, got %v", err)
	}
	if err := p.ReportPosition(ctx, "s1", "", 4); err != nil {
		t.Fatalf("ReportPosition failed: %v", err)
	}
	if err := p.ReportPosition(ctx, "s1", "secret", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other presentation, got %v", err)
	}

	participant, err := r.FindParticipant(ctx, "s1", deck.ID)
	if err != nil {
		t.Fatalf("FindParticipant failed: %v", err)
	}
	if participant.CurrentSlide == nil || *participant.CurrentSlide != 4 {
		t.Errorf("current slide = %v, want 4", participant.CurrentSlide)
	}
}

func TestDisconnect(t *testing.T) {
	p, _, _ := newTestPresence(t, 0)
	ctx := context.Background()

	if err := p.Disconnect(ctx, "never-seen"); err != nil {
		t.Errorf("disconnect of unknown session failed: %v", err)
	}
	if err := p.Disconnect(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	for _, s := range []string{"s1", "s2"} {
		if _, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: s}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if err := p.Disconnect(ctx, "s1"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if err := p.Disconnect(ctx, "s1"); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}

	active, err := p.ListActive(ctx, "deck")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].SessionID != "s2" {
		t.Errorf("expected only s2 active, got %v", active)
	}
}

func TestListActiveOrderingAndStaleness(t *testing.T) {
	p, clock, _ := newTestPresence(t, 45*time.Second)
	ctx := context.Background()

	for _, s := range []string{"old", "mid", "new"} {
		if _, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: s}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		clock.Advance(20 * time.Second)
	}
	// old: 60s ago, mid: 40s ago, new: 20s ago

	active, err := p.ListActive(ctx, "deck")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 || active[0].SessionID != "new" || active[1].SessionID != "mid" {
		t.Fatalf("unexpected active list: %v", active)
	}

	if err := p.ReportPosition(ctx, "old", "deck", 1); err != nil {
		t.Fatalf("ReportPosition failed: %v", err)
	}
	active, err = p.ListActive(ctx, "deck")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 3 || active[0].SessionID != "old" {
		t.Errorf("report did not revive participant: %v", active)
	}

	if _, err := p.ListActive(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveForPresenter(t *testing.T) {
	p, _, r := newTestPresence(t, 0)
	ctx := context.Background()
	deck := mustPresentation(t, r, "deck")

	if _, err := p.Register(ctx, usecase.RegisterInput{PresentationUID: "deck", SessionID: "s1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := p.ListActiveForPresenter(ctx, deck.ID, domain.PresenterContext{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for anonymous, got %v", err)
	}
	stranger := domain.NewPresenterContext(&domain.Identity{UserID: 8}, []string{"secret"})
	if _, err := p.ListActiveForPresenter(ctx, deck.ID, stranger); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for non owner, got %v", err)
	}

	for _, pc := range []domain.PresenterContext{
		domain.NewPresenterContext(&domain.Identity{UserID: 7}, nil),
		domain.NewPresenterContext(nil, []string{"deck"}),
	} {
		active, err := p.ListActiveForPresenter(ctx, deck.ID, pc)
		if err != nil {
			t.Fatalf("ListActiveForPresenter failed: %v", err)
		}
		if len(active) != 1 {
			t.Errorf("expected 1 participant, got %d", len(active))
		}
	}

	active, err := p.ListActiveByID(ctx, deck.ID)
	if err != nil || len(active) != 1 {
		t.Errorf("ListActiveByID = %v, %v", active, err)
	}
}
