package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ponyo877/livedeck/server/domain"
	"gopkg.in/yaml.v3"
)

// Fixtures is the presentations.yml document seeded at startup.
type Fixtures struct {
	Presentations []PresentationFixture `yaml:"presentations"`
}

type PresentationFixture struct {
	UID               string   `yaml:"uid"`
	Title             string   `yaml:"title"`
	OwnerID           int64    `yaml:"owner_id"`
	Public            bool     `yaml:"public"`
	PresenterPassword string   `yaml:"presenter_password"`
	Slides            []string `yaml:"slides"`
}

// LoadFixtures reads a fixtures file. A missing file yields empty fixtures.
func LoadFixtures(path string) (Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Fixtures{}, nil
		}
		return Fixtures{}, fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer file.Close()

	var fixtures Fixtures
	d := yaml.NewDecoder(file)
	if err := d.Decode(&fixtures); err != nil && !errors.Is(err, io.EOF) {
		return Fixtures{}, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return fixtures, nil
}

// Seed upserts every presentation by uid and replaces its slides, returning
// the ids of the seeded rows. Entries without a uid get a fresh ULID; a uid
// that cannot name a channel rejects the whole file before anything is
// written.
func (r *Repository) Seed(ctx context.Context, fixtures Fixtures, logger *slog.Logger) ([]int64, error) {
	for _, f := range fixtures.Presentations {
		if f.UID != "" && !domain.IsValidPresentationUID(f.UID) {
			return nil, fmt.Errorf("invalid fixture uid '%s' (want 1-64 of [A-Za-z0-9_-]): %w", f.UID, domain.ErrInvalidRequest)
		}
	}

	ids := make([]int64, 0, len(fixtures.Presentations))
	for _, f := range fixtures.Presentations {
		if f.UID == "" {
			f.UID = ulid.Make().String()
			logger.Warn("Fixture presentation has no uid, generated one",
				slog.String("title", f.Title),
				slog.String("uid", f.UID),
			)
		}
		id, err := r.seedPresentation(ctx, f)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Repository) seedPresentation(ctx context.Context, f PresentationFixture) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO presentations (uid, title, owner_id, is_public, presenter_password, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			is_public = excluded.is_public,
			presenter_password = excluded.presenter_password
	`
	if _, err := tx.ExecContext(ctx, query, f.UID, f.Title, f.OwnerID, f.Public, f.PresenterPassword, toMillis(time.Now())); err != nil {
		return 0, fmt.Errorf("failed to upsert presentation '%s': %w", f.UID, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM presentations WHERE uid = ?", f.UID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to query presentation '%s': %w", f.UID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE presentation_id = ?", id); err != nil {
		return 0, fmt.Errorf("failed to delete slides of '%s': %w", f.UID, err)
	}
	for i, title := range f.Slides {
		if _, err := tx.ExecContext(ctx, "INSERT INTO slides (presentation_id, position, title) VALUES (?, ?, ?)", id, i, title); err != nil {
			return 0, fmt.Errorf("failed to insert slide %d of '%s': %w", i, f.UID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}
