package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
)

type deviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

const participantColumns = `
	SELECT id, session_id, name, presentation_id, user_id, current_slide, is_active,
		last_activity, device_info, created_at, updated_at
	FROM participants`

// UpsertParticipant creates or refreshes the row of (session, presentation).
// An existing row keeps its id, session id and current slide.
func (r *Repository) UpsertParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	device, err := json.Marshal(deviceInfo{UserAgent: p.DeviceInfo.UserAgent, IP: p.DeviceInfo.IP})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("failed to marshal device info: %w", err)
	}

	var userID sql.NullInt64
	if p.UserID != nil {
		userID = sql.NullInt64{Int64: *p.UserID, Valid: true}
	}

	query := `
		INSERT INTO participants (session_id, name, presentation_id, user_id, current_slide, is_active,
			last_activity, device_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, 1, ?, ?, ?, ?)
		ON CONFLICT(session_id, presentation_id) DO UPDATE SET
			name = excluded.name,
			user_id = excluded.user_id,
			is_active = 1,
			last_activity = excluded.last_activity,
			device_info = excluded.device_info,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.SessionID, p.Name, p.PresentationID, userID,
		toMillis(p.LastActivity), string(device), toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	); err != nil {
		return domain.Participant{}, fmt.Errorf("failed to upsert participant %s: %w", p.SessionID, err)
	}
	return r.FindParticipant(ctx, p.SessionID, p.PresentationID)
}

func (r *Repository) FindParticipant(ctx context.Context, sessionID string, presentationID int64) (domain.Participant, error) {
	row := r.db.QueryRowContext(ctx, participantColumns+" WHERE session_id = ? AND presentation_id = ?", sessionID, presentationID)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Participant{}, fmt.Errorf("participant %s: %w", sessionID, domain.ErrNotFound)
		}
		return domain.Participant{}, fmt.Errorf("error querying participant: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateParticipantSlide(ctx context.Context, sessionID string, presentationID int64, slide int, at time.Time) (int64, error) {
	query := "UPDATE participants SET current_slide = ?, is_active = 1, last_activity = ?, updated_at = ? WHERE session_id = ?"
	args := []any{slide, toMillis(at), toMillis(at), sessionID}
	if presentationID != 0 {
		query += " AND presentation_id = ?"
		args = append(args, presentationID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update slide for session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *Repository) DeactivateParticipants(ctx context.Context, sessionID string, at time.Time) error {
	query := "UPDATE participants SET is_active = 0, updated_at = ? WHERE session_id = ? AND is_active = 1"
	if _, err := r.db.ExecContext(ctx, query, toMillis(at), sessionID); err != nil {
		return fmt.Errorf("failed to deactivate session %s: %w", sessionID, err)
	}
	return nil
}

func (r *Repository) DeactivateStaleParticipants(ctx context.Context, presentationID int64, cutoff time.Time) (int64, error) {
	query := "UPDATE participants SET is_active = 0 WHERE presentation_id = ? AND is_active = 1 AND last_activity < ?"
	res, err := r.db.ExecContext(ctx, query, presentationID, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to expire participants of %d: %w", presentationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *Repository) ListActiveParticipants(ctx context.Context, presentationID int64) ([]domain.Participant, error) {
	query := participantColumns + " WHERE presentation_id = ? AND is_active = 1 ORDER BY last_activity DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, presentationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for %d: %w", presentationID, err)
	}
	defer rows.Close()

	participants := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over participants for %d: %w", presentationID, err)
	}
	return participants, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(s scanner) (domain.Participant, error) {
	var (
		p                                  domain.Participant
		userID, currentSlide               sql.NullInt64
		lastActivity, createdAt, updatedAt int64
		device                             string
	)
	if err := s.Scan(&p.ID, &p.SessionID, &p.Name, &p.PresentationID, &userID, &currentSlide, &p.IsActive,
		&lastActivity, &device, &createdAt, &updatedAt); err != nil {
		return domain.Participant{}, err
	}
	if userID.Valid {
		id := userID.Int64
		p.UserID = &id
	}
	if currentSlide.Valid {
		slide := int(currentSlide.Int64)
		p.CurrentSlide = &slide
	}
	var info deviceInfo
	if err := json.Unmarshal([]byte(device), &info); err == nil {
		p.DeviceInfo = domain.DeviceInfo{UserAgent: info.UserAgent, IP: info.IP}
	}
	p.LastActivity = fromMillis(lastActivity)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}
