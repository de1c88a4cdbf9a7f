package usecase_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/repository"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// owner 7 owns the public "deck" (3 slides, password "pw"); owner 8 owns the
// private "secret" without a presenter password; "abc" has six slides.
var testFixtures = repository.Fixtures{
	Presentations: []repository.PresentationFixture{
		{UID: "deck", Title: "Deck", OwnerID: 7, Public: true, PresenterPassword: "pw", Slides: []string{"a", "b", "c"}},
		{UID: "secret", Title: "Secret", OwnerID: 8, Slides: []string{"only"}},
		{UID: "abc", Title: "ABC", OwnerID: 7, Public: true, Slides: []string{"1", "2", "3", "4", "5", "6"}},
	},
}

func newTestRepository(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r := repository.NewRepository(db)
	ctx := context.Background()
	if err := r.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := r.Seed(ctx, testFixtures, newTestLogger()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return r
}

func mustPresentation(t *testing.T, r *repository.Repository, uid string) domain.Presentation {
	t.Helper()
	p, err := r.FindPresentationByUID(context.Background(), uid)
	if err != nil {
		t.Fatalf("FindPresentationByUID(%s) failed: %v", uid, err)
	}
	return p
}

// subscribe attaches a buffered receiver to a hub channel.
func subscribe(t *testing.T, hub domain.Hub, channel string) <-chan domain.Message {
	t.Helper()
	deliver := make(chan domain.Message, 16)
	if err := hub.Subscribe(domain.NewSubscription("test", channel, "local"), deliver); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	return deliver
}

func receiveSlide(t *testing.T, deliver <-chan domain.Message) int {
	t.Helper()
	select {
	case msg := <-deliver:
		if msg.Event != domain.EventSlideChange {
			t.Fatalf("unexpected event %q", msg.Event)
		}
		var payload domain.SlideChange
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("bad payload %s: %v", msg.Data, err)
		}
		return payload.SlideIndex
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
		return -1
	}
}

func expectNoMessage(t *testing.T, deliver <-chan domain.Message) {
	t.Helper()
	select {
	case msg := <-deliver:
		t.Fatalf("unexpected broadcast: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
