package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/store"
)

// ApplyStatusUpdate moves a booking to an explicitly requested status,
// subject to the transition rules. It backs the manual status endpoint.
func (p *Pipeline) ApplyStatusUpdate(ctx context.Context, ref, rawStatus string) Result {
	next, err := booking.ParseStatus(rawStatus)
	if err != nil {
		return failure(CodeValidation, err.Error())
	}

	b, err := p.bookingByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(CodeNotFound, "booking not found")
		}
		p.logger.Error("booking lookup failed", "ref", ref, "error", err)
		return failure("", "booking lookup failed")
	}

	if !b.Status.CanTransition(next) {
		return failure(CodeValidation, fmt.Sprintf("cannot move booking from %s to %s", b.Status, next))
	}

	err = p.store.UpdateBooking(ctx, b.ID, store.Patch{ExpectedUpdatedAt: &b.UpdatedAt, Status: &next})
	if errors.Is(err, store.ErrStale) {
		// Something else moved the booking first; recheck the transition
		// against the fresh row and retry once.
		p.logger.Warn("booking changed concurrently, retrying status update", "ref_code", b.RefCode)
		if b, err = p.store.BookingByID(ctx, b.ID); err == nil {
			if !b.Status.CanTransition(next) {
				return failure(CodeValidation, fmt.Sprintf("cannot move booking from %s to %s", b.Status, next))
			}
			err = p.store.UpdateBooking(ctx, b.ID, store.Patch{ExpectedUpdatedAt: &b.UpdatedAt, Status: &next})
		}
	}
	if err != nil {
		p.logger.Error("failed to update booking status", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to update booking")
	}

	p.logger.Info("booking status updated", "ref_code", b.RefCode, "from", string(b.Status), "to", string(next))

	event := events.BookingEvent{
		BookingID: b.ID.String(),
		RefCode:   b.RefCode,
		Status:    string(next),
		Operator:  string(b.Operator),
		At:        time.Now().UTC().Format(time.RFC3339),
	}
	switch next {
	case booking.StatusConfirmed:
		p.publish(events.SubjectBookingConfirmed, event)
	case booking.StatusCancelled:
		p.publish(events.SubjectBookingCancelled, event)
	}

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(next),
	}}
}

// GetBooking backs the read endpoint; ref may be a booking id or a ref
// code.
func (p *Pipeline) GetBooking(ctx context.Context, ref string) (booking.Booking, Result) {
	b, err := p.bookingByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return booking.Booking{}, failure(CodeNotFound, "booking not found")
		}
		p.logger.Error("booking lookup failed", "ref", ref, "error", err)
		return booking.Booking{}, failure("", "booking lookup failed")
	}
	return b, Result{Success: true}
}
