package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

var errDuplicateEvent = errors.New("attendance event already recorded")

type AttendanceRepository struct {
	pool PgxPool
}

func NewAttendanceRepository(pool PgxPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func (r *AttendanceRepository) Append(ctx context.Context, event *domain.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (id, identity_name, contact, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query, event.ID, event.IdentityName, event.Contact, event.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append attendance %s: %w", event.ID, errDuplicateEvent)
		}
		return fmt.Errorf("append attendance: %w", err)
	}

	return nil
}

// ListRecent returns at most limit events, newest first.
func (r *AttendanceRepository) ListRecent(ctx context.Context, limit int) ([]domain.AttendanceEvent, error) {
	query := `
		SELECT id, identity_name, contact, recorded_at
		FROM attendance_events
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	events := make([]domain.AttendanceEvent, 0, limit)
	for rows.Next() {
		var ev domain.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.IdentityName, &ev.Contact, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}

	return events, nil
}

// LatestByIdentity returns the newest event time per identity at or after since.
func (r *AttendanceRepository) LatestByIdentity(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	query := `
		SELECT identity_name, MAX(recorded_at)
		FROM attendance_events
		WHERE recorded_at >= $1
		GROUP BY identity_name
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("latest attendance: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var at time.Time
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("scan latest attendance: %w", err)
		}
		latest[name] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest attendance: %w", err)
	}

	return latest, nil
}
