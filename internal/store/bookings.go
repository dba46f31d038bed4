package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/makai-tours/skydesk/internal/booking"
)

const createAttempts = 3

const bookingColumns = `id, ref_code, status, customer_name, customer_email, customer_phone,
	party_size, preferred_date, time_window, doors_off, hotel, special_requests,
	total_weight_lbs, operator_name, operator_id, confirmation_number, total_amount,
	metadata, created_at, updated_at`

// CreateBooking inserts a new booking, assigning id, reference code and
// timestamps. A reference-code collision triggers regeneration, bounded
// at three attempts before ErrRefCodeExhausted.
func (s *Store) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Metadata == nil {
		b.Metadata = booking.Metadata{}
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		b.RefCode = booking.NewRefCode()

		_, err := s.pool.Exec(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			b.ID, b.RefCode, string(b.Status), b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.PartySize, b.PreferredDate, b.TimeWindow, b.DoorsOff, b.Hotel, b.SpecialRequests,
			b.TotalWeightLbs, b.OperatorName, string(b.Operator), b.ConfirmationNumber, b.TotalAmount,
			map[string]any(b.Metadata), b.CreatedAt, b.UpdatedAt,
		)
		if err == nil {
			return b, nil
		}
		if !isUniqueViolation(err) {
			return booking.Booking{}, fmt.Errorf("insert booking: %w", err)
		}
	}
	return booking.Booking{}, ErrRefCodeExhausted
}

// BookingByID fetches one booking by its opaque id.
func (s *Store) BookingByID(ctx context.Context, id uuid.UUID) (booking.Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

// BookingByRefCode fetches one booking by its public reference code.
func (s *Store) BookingByRefCode(ctx context.Context, refCode string) (booking.Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE ref_code = $1`, refCode)
	return scanBooking(row)
}

// LatestBookingByEmail fetches the most recently created booking for a
// customer address, matched case-insensitively.
func (s *Store) LatestBookingByEmail(ctx context.Context, email string) (booking.Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE lower(customer_email) = lower($1)
		ORDER BY created_at DESC
		LIMIT 1`, email)
	return scanBooking(row)
}

// LatestBookingByOperator fetches the most recently created booking
// assigned to an operator identity, the last rung of the reply-matching
// ladder.
func (s *Store) LatestBookingByOperator(ctx context.Context, op booking.OperatorID) (booking.Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE operator_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, string(op))
	return scanBooking(row)
}

// Patch is a partial booking update. Nil members are left untouched;
// Metadata is a full replacement and must be pre-merged by the caller.
// ExpectedUpdatedAt, when set, makes the update conditional on the row
// not having changed since that read.
type Patch struct {
	ExpectedUpdatedAt  *time.Time
	Status             *booking.Status
	Metadata           booking.Metadata
	CustomerName       *string
	CustomerEmail      *string
	CustomerPhone      *string
	PartySize          *int
	PreferredDate      *string
	TimeWindow         *string
	DoorsOff           *bool
	Hotel              *string
	SpecialRequests    *string
	TotalWeightLbs     *float64
	OperatorName       *string
	Operator           *booking.OperatorID
	ConfirmationNumber *string
	TotalAmount        *float64
}

// UpdateBooking applies a partial update and refreshes updated_at. With
// ExpectedUpdatedAt set the write is a compare-and-swap: a concurrent
// modification since that read yields ErrStale.
func (s *Store) UpdateBooking(ctx context.Context, id uuid.UUID, p Patch) error {
	set, args := buildPatch(p)
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE bookings SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(set, ", "), len(args))
	if p.ExpectedUpdatedAt != nil {
		args = append(args, *p.ExpectedUpdatedAt)
		query += fmt.Sprintf(` AND updated_at = $%d`, len(args))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if p.ExpectedUpdatedAt == nil {
			return ErrNotFound
		}
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if exists {
			return ErrStale
		}
		return ErrNotFound
	}
	return nil
}

// buildPatch renders the SET clause and argument list for a Patch.
func buildPatch(p Patch) ([]string, []any) {
	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Metadata != nil {
		add("metadata", map[string]any(p.Metadata))
	}
	if p.CustomerName != nil {
		add("customer_name", *p.CustomerName)
	}
	if p.CustomerEmail != nil {
		add("customer_email", *p.CustomerEmail)
	}
	if p.CustomerPhone != nil {
		add("customer_phone", *p.CustomerPhone)
	}
	if p.PartySize != nil {
		add("party_size", *p.PartySize)
	}
	if p.PreferredDate != nil {
		add("preferred_date", *p.PreferredDate)
	}
	if p.TimeWindow != nil {
		add("time_window", *p.TimeWindow)
	}
	if p.DoorsOff != nil {
		add("doors_off", *p.DoorsOff)
	}
	if p.Hotel != nil {
		add("hotel", *p.Hotel)
	}
	if p.SpecialRequests != nil {
		add("special_requests", *p.SpecialRequests)
	}
	if p.TotalWeightLbs != nil {
		add("total_weight_lbs", *p.TotalWeightLbs)
	}
	if p.OperatorName != nil {
		add("operator_name", *p.OperatorName)
	}
	if p.Operator != nil {
		add("operator_id", string(*p.Operator))
	}
	if p.ConfirmationNumber != nil {
		add("confirmation_number", *p.ConfirmationNumber)
	}
	if p.TotalAmount != nil {
		add("total_amount", *p.TotalAmount)
	}
	return set, args
}

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var b booking.Booking
	var status, operatorID string
	var metadata map[string]any

	err := row.Scan(
		&b.ID, &b.RefCode, &status, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.PartySize, &b.PreferredDate, &b.TimeWindow, &b.DoorsOff, &b.Hotel, &b.SpecialRequests,
		&b.TotalWeightLbs, &b.OperatorName, &operatorID, &b.ConfirmationNumber, &b.TotalAmount,
		&metadata, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, ErrNotFound
		}
		return booking.Booking{}, fmt.Errorf("scan booking: %w", err)
	}

	b.Status = booking.Status(status)
	b.Operator = booking.OperatorID(operatorID)
	b.Metadata = booking.Metadata(metadata)
	if b.Metadata == nil {
		b.Metadata = booking.Metadata{}
	}
	return b, nil
}
