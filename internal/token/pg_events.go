package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgEventSink appends events to the event_logs table. Only the audit trail is
// written; schedule snapshots stay in memory.
type PgEventSink struct {
	pool *pgxpool.Pool
}

func NewPgEventSink(pool *pgxpool.Pool) *PgEventSink {
	return &PgEventSink{pool: pool}
}

func (r *PgEventSink) InsertEvent(ctx context.Context, ev Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, doctor_id, token_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.DoctorID, ev.TokenID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// ListTokenEvents returns the audit trail of one token, oldest first.
func (r *PgEventSink) ListTokenEvents(ctx context.Context, tokenID uuid.UUID) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, doctor_id, token_id, payload, created_at
		FROM event_logs
		WHERE token_id = $1
		ORDER BY created_at, id
	`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("list token events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	var tokenID *uuid.UUID

	err := row.Scan(
		&ev.ID,
		&ev.EventType,
		&ev.DoctorID,
		&tokenID,
		&ev.Payload,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.TokenID = tokenID
	return &ev, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
