package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/ponyo877/livedeck/server/usecase"
)

const driverName = "sqlite3_livedeck"

var registerDriver sync.Once

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ usecase.Repository = (*Repository)(nil)

// Open opens the SQLite database at path, creating its directory. ":memory:"
// is pinned to a single connection so every query sees the same database.
func Open(path string) (*sql.DB, error) {
	registerDriver.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if _, err := conn.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
					return err
				}
				_, err := conn.Exec("PRAGMA busy_timeout = 5000", nil)
				return err
			},
		})
	})

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS presentations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		owner_id INTEGER NOT NULL,
		is_public INTEGER NOT NULL DEFAULT 0,
		presenter_password TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS slides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		presentation_id INTEGER NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		presentation_id INTEGER NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
		user_id INTEGER,
		current_slide INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_activity INTEGER NOT NULL,
		device_info TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (session_id, presentation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		slide_id INTEGER,
		data TEXT,
		session_id TEXT NOT NULL,
		presentation_id INTEGER NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
		participant_id INTEGER REFERENCES participants(id) ON DELETE SET NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS slide_states (
		presentation_id INTEGER PRIMARY KEY REFERENCES presentations(id) ON DELETE CASCADE,
		slide_index INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_slides_presentation ON slides(presentation_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_active ON participants(presentation_id, is_active, last_activity)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_session ON participants(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_presentation ON analytics(presentation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_event_type ON analytics(presentation_id, event_type)`,
}

func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

const presentationColumns = `
	SELECT p.id, p.uid, p.title, p.owner_id, p.is_public, p.presenter_password,
		(SELECT COUNT(*) FROM slides s WHERE s.presentation_id = p.id)
	FROM presentations p`

func (r *Repository) FindPresentationByUID(ctx context.Context, uid string) (domain.Presentation, error) {
	row := r.db.QueryRowContext(ctx, presentationColumns+" WHERE p.uid = ?", uid)
	p, err := scanPresentation(row)
	if err != nil {
		return domain.Presentation{}, fmt.Errorf("presentation %s: %w", uid, err)
	}
	return p, nil
}

func (r *Repository) FindPresentationByID(ctx context.Context, id int64) (domain.Presentation, error) {
	row := r.db.QueryRowContext(ctx, presentationColumns+" WHERE p.id = ?", id)
	p, err := scanPresentation(row)
	if err != nil {
		return domain.Presentation{}, fmt.Errorf("presentation %d: %w", id, err)
	}
	return p, nil
}

func scanPresentation(row *sql.Row) (domain.Presentation, error) {
	var p domain.Presentation
	if err := row.Scan(&p.ID, &p.UID, &p.Title, &p.OwnerID, &p.IsPublic, &p.PresenterPassword, &p.SlideCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Presentation{}, domain.ErrNotFound
		}
		return domain.Presentation{}, fmt.Errorf("error querying presentation: %w", err)
	}
	return p, nil
}

func (r *Repository) SaveSlideState(ctx context.Context, presentationID int64, slideIndex int, at time.Time) error {
	query := `
		INSERT INTO slide_states (presentation_id, slide_index, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(presentation_id) DO UPDATE SET slide_index = excluded.slide_index, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, presentationID, slideIndex, toMillis(at)); err != nil {
		return fmt.Errorf("failed to save slide state for %d: %w", presentationID, err)
	}
	return nil
}

func (r *Repository) GetSlideState(ctx context.Context, presentationID int64) (int, error) {
	var index int
	query := "SELECT slide_index FROM slide_states WHERE presentation_id = ?"
	if err := r.db.QueryRowContext(ctx, query, presentationID).Scan(&index); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("slide state for %d: %w", presentationID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("error querying slide state: %w", err)
	}
	return index, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
