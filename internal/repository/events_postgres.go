package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/set-night/terranote/internal/domain"
)

// PostgresEventLog stores events in the callback_events table. Seq comes from
// the BIGSERIAL key, so ordering survives restarts and is shared by replicas.
type PostgresEventLog struct {
	db *pgxpool.Pool
}

func NewPostgresEventLog(db *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

func (l *PostgresEventLog) Append(ctx context.Context, ev domain.CallbackEvent) (domain.CallbackEvent, error) {
	var createdAt pgtype.Timestamptz
	err := l.db.QueryRow(ctx,
		`INSERT INTO callback_events (type, note_id, created_at)
		 VALUES ($1, $2, COALESCE($3, now()))
		 RETURNING seq, created_at`,
		ev.Type, ev.Payload.NoteID, timeToPgTimestamptz(ev.CreatedAt),
	).Scan(&ev.Seq, &createdAt)
	if err != nil {
		return domain.CallbackEvent{}, fmt.Errorf("insert callback event: %w", err)
	}
	ev.CreatedAt = pgTimestamptzToTime(createdAt)
	return ev, nil
}

func (l *PostgresEventLog) List(ctx context.Context, since int64, limit int) ([]domain.CallbackEvent, error) {
	rows, err := l.db.Query(ctx,
		`SELECT seq, type, note_id, created_at
		 FROM callback_events
		 WHERE seq > $1
		 ORDER BY seq
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list callback events: %w", err)
	}
	defer rows.Close()

	var events []domain.CallbackEvent
	for rows.Next() {
		var (
			ev        domain.CallbackEvent
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&ev.Seq, &ev.Type, &ev.Payload.NoteID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan callback event: %w", err)
		}
		ev.CreatedAt = pgTimestamptzToTime(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate callback events: %w", err)
	}
	return events, nil
}
