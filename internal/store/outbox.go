package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a persisted notification intent. The intent is written
// before the send is attempted and marked afterwards, so a background
// sweep can retry failures without re-deriving any handler logic.
type OutboxEntry struct {
	ID         uuid.UUID
	BookingRef string
	Recipient  string
	Template   string
	Data       map[string]any
	Status     string // "pending", "sent", "failed"
	LastError  string
	Attempts   int
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// InsertOutbox records a notification intent as pending. bookingRef is
// the booking's ref code and may be empty for sends with no booking,
// such as spam deflections.
func (s *Store) InsertOutbox(ctx context.Context, bookingRef, recipient, template string, data map[string]any) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_outbox (id, booking_ref, recipient, template, data, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, now())`,
		id, bookingRef, recipient, template, data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox: %w", err)
	}
	return id, nil
}

// MarkOutbox records the result of a send attempt.
func (s *Store) MarkOutbox(ctx context.Context, id uuid.UUID, sent bool, errMsg string) error {
	status := "sent"
	if !sent {
		status = "failed"
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET status = $1, last_error = $2, attempts = attempts + 1, resolved_at = now()
		WHERE id = $3`,
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox: %w", err)
	}
	return nil
}

// FailedOutbox lists failed entries below the attempt cap, oldest first,
// for the retry sweep.
func (s *Store) FailedOutbox(ctx context.Context, maxAttempts, limit int) ([]OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, booking_ref, recipient, template, data, status, last_error, attempts, created_at, resolved_at
		FROM notification_outbox
		WHERE status = 'failed' AND attempts < $1
		ORDER BY created_at
		LIMIT $2`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.BookingRef, &e.Recipient, &e.Template, &e.Data,
			&e.Status, &e.LastError, &e.Attempts, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
