package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ponyo877/livedeck/server/domain"
)

const hourMillis = int64(time.Hour / time.Millisecond)

func (r *Repository) CreateAnalytic(ctx context.Context, event domain.AnalyticEvent) (int64, error) {
	var data sql.NullString
	if len(event.Data) > 0 {
		data = sql.NullString{String: string(event.Data), Valid: true}
	}
	query := `
		INSERT INTO analytics (event_type, slide_id, data, session_id, presentation_id, participant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		event.EventType, nullInt64(event.SlideID), data, event.SessionID,
		event.PresentationID, nullInt64(event.ParticipantID), toMillis(event.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analytic event for %d: %w", event.PresentationID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read analytic id: %w", err)
	}
	return id, nil
}

func (r *Repository) ListAnalytics(ctx context.Context, presentationID int64, limit, offset int) ([]domain.AnalyticEvent, error) {
	query := `
		SELECT a.id, a.event_type, a.slide_id, a.data, a.session_id, p.uid, a.presentation_id, a.participant_id, a.created_at
		FROM analytics a JOIN presentations p ON p.id = a.presentation_id
		WHERE a.presentation_id = ?
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, presentationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics for %d: %w", presentationID, err)
	}
	defer rows.Close()

	events := []domain.AnalyticEvent{}
	for rows.Next() {
		var (
			e                      domain.AnalyticEvent
			slideID, participantID sql.NullInt64
			data                   sql.NullString
			createdAt              int64
		)
		if err := rows.Scan(&e.ID, &e.EventType, &slideID, &data, &e.SessionID, &e.PresentationUID,
			&e.PresentationID, &participantID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytic event: %w", err)
		}
		e.SlideID = int64Ptr(slideID)
		e.ParticipantID = int64Ptr(participantID)
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		e.CreatedAt = fromMillis(createdAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over analytics for %d: %w", presentationID, err)
	}
	return events, nil
}

// SummarizeAnalytics counts every participant ever registered, the ten most
// viewed slides, and participants active per hour since the given time.
func (r *Repository) SummarizeAnalytics(ctx context.Context, presentationID int64, since time.Time) (domain.AnalyticsSummary, error) {
	summary := domain.AnalyticsSummary{
		SlideViews:         []domain.SlideViewCount{},
		ActiveParticipants: []domain.HourlyActivity{},
	}

	query := "SELECT COUNT(*) FROM participants WHERE presentation_id = ?"
	if err := r.db.QueryRowContext(ctx, query, presentationID).Scan(&summary.ViewCount); err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("failed to count participants for %d: %w", presentationID, err)
	}

	query = `
		SELECT slide_id, COUNT(*) AS views FROM analytics
		WHERE presentation_id = ? AND event_type = ?
		GROUP BY slide_id ORDER BY views DESC, slide_id LIMIT 10
	`
	rows, err := r.db.QueryContext(ctx, query, presentationID, domain.EventTypeSlideView)
	if err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("failed to query slide views for %d: %w", presentationID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var slideID sql.NullInt64
		var views int64
		if err := rows.Scan(&slideID, &views); err != nil {
			return domain.AnalyticsSummary{}, fmt.Errorf("failed to scan slide views: %w", err)
		}
		summary.SlideViews = append(summary.SlideViews, domain.SlideViewCount{SlideID: int64Ptr(slideID), Views: views})
	}
	if err := rows.Err(); err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("error iterating over slide views: %w", err)
	}

	query = `
		SELECT (last_activity / ?) * ? AS hour, COUNT(*) FROM participants
		WHERE presentation_id = ? AND last_activity >= ?
		GROUP BY hour ORDER BY hour
	`
	hours, err := r.db.QueryContext(ctx, query, hourMillis, hourMillis, presentationID, toMillis(since))
	if err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("failed to query hourly activity for %d: %w", presentationID, err)
	}
	defer hours.Close()
	for hours.Next() {
		var hour, count int64
		if err := hours.Scan(&hour, &count); err != nil {
			return domain.AnalyticsSummary{}, fmt.Errorf("failed to scan hourly activity: %w", err)
		}
		summary.ActiveParticipants = append(summary.ActiveParticipants, domain.HourlyActivity{Hour: fromMillis(hour), Count: count})
	}
	if err := hours.Err(); err != nil {
		return domain.AnalyticsSummary{}, fmt.Errorf("error iterating over hourly activity: %w", err)
	}
	return summary, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
