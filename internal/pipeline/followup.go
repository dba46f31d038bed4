package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/makai-tours/skydesk/internal/availability"
	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// SendAvailabilityFollowUp probes operator availability for a booking
// and emails the customer the outcome. ref may be a booking id or a ref
// code. The safety gate runs after the probe and before any send: a
// protected customer address aborts the whole follow-up.
func (p *Pipeline) SendAvailabilityFollowUp(ctx context.Context, ref string) Result {
	b, err := p.bookingByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(CodeNotFound, "booking not found")
		}
		p.logger.Error("booking lookup failed", "ref", ref, "error", err)
		return failure("", "booking lookup failed")
	}

	if b.Status == booking.StatusConfirmed {
		return failure(CodeAlreadyConfirmed, "booking is already confirmed")
	}
	if b.Status.Terminal() {
		return failure(CodeValidation, "booking is closed")
	}
	if b.Status == booking.StatusAwaitingPayment {
		// Resending is allowed but worth noticing.
		p.logger.Warn("follow-up resend for booking already awaiting payment", "ref_code", b.RefCode)
	}

	checking := booking.StatusCheckingAvailability
	if b.Status != checking {
		if err := p.store.UpdateBooking(ctx, b.ID, store.Patch{Status: &checking}); err != nil {
			p.logger.Error("failed to mark booking checking availability", "ref_code", b.RefCode, "error", err)
			return failure("", "failed to update booking")
		}
		b.Status = checking
	}

	probe := p.prober.Probe(ctx, b.Operator, b.PreferredDate, b.PartySize, b.SpecialRequests)

	meta := booking.MergeMetadata(b.Metadata, booking.Metadata{
		"availability": map[string]any{
			"available":  probe.Available,
			"tour_price": probe.TourPrice,
			"source":     probe.Source,
			"error":      probe.Err,
			"checked_at": time.Now().UTC().Format(time.RFC3339),
		},
	})

	// Safety gate: the follow-up is customer-facing and must never reach
	// an operator, agent, or internal address, whatever upstream put in
	// the email field.
	if p.directory.IsProtectedAddress(b.CustomerEmail) {
		p.logger.Error("CRITICAL: follow-up target is a protected address, aborting",
			"ref_code", b.RefCode,
			"customer_email", b.CustomerEmail,
		)
		p.publish(events.SubjectSafetyAlert, events.BookingEvent{
			BookingID: b.ID.String(),
			RefCode:   b.RefCode,
			Status:    string(b.Status),
			Operator:  string(b.Operator),
			At:        time.Now().UTC().Format(time.RFC3339),
		})
		if err := p.store.UpdateBooking(ctx, b.ID, store.Patch{Metadata: meta}); err != nil {
			p.logger.Error("failed to record aborted follow-up", "ref_code", b.RefCode, "error", err)
		}
		return failure(CodeSafetyViolation, "follow-up target is a protected internal address")
	}

	data := payloadFor(b)
	data.Slots = followUpSlots(probe, b.PartySize)

	var tpl mailer.Template
	switch {
	case b.Operator.Rainbow():
		tpl = mailer.TplFollowUpArranging
	case len(data.Slots) > 0:
		tpl = mailer.TplFollowUpTimes
	default:
		tpl = mailer.TplFollowUpChecking
	}

	sendRes := p.notifier.Send(ctx, b.CustomerEmail, tpl, data)
	if sendRes.Success && b.Operator.Rainbow() && p.directory.InternalAgent != "" {
		if res := p.notifier.Send(ctx, p.directory.InternalAgent, mailer.TplInternalArrange, data); !res.Success {
			p.logger.Error("internal arrange notice failed", "ref_code", b.RefCode, "error", res.Err)
		}
	}

	// The transition rides on the notification alone: a holding message
	// is still a follow-up, so only a failed customer send leaves the
	// booking in checking_availability.
	patch := store.Patch{Metadata: meta}
	if sendRes.Success {
		awaiting := booking.StatusAwaitingPayment
		patch.Status = &awaiting
		b.Status = awaiting
	} else {
		p.logger.Error("availability follow-up send failed", "ref_code", b.RefCode, "error", sendRes.Err)
	}
	if err := p.store.UpdateBooking(ctx, b.ID, patch); err != nil {
		p.logger.Error("failed to record follow-up outcome", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to update booking")
	}

	return Result{Success: sendRes.Success, Data: map[string]any{
		"ref_code":  b.RefCode,
		"status":    string(b.Status),
		"available": probe.Available,
		"source":    probe.Source,
		"template":  string(tpl),
	}}
}

// followUpSlots converts probe slots into customer-facing slots with a
// total party price. A per-slot price is per passenger; the tour price
// is already per party and is used as-is when slots carry none.
func followUpSlots(probe availability.Result, partySize int) []mailer.Slot {
	if partySize < 1 {
		partySize = 1
	}
	out := make([]mailer.Slot, 0, len(probe.Slots))
	for _, s := range probe.Slots {
		total := s.Price * float64(partySize)
		if s.Price == 0 {
			total = probe.TourPrice
		}
		out = append(out, mailer.Slot{Label: s.Label, TotalPrice: total})
	}
	return out
}

// bookingByRef resolves a path or event reference that may be either a
// booking id or a ref code.
func (p *Pipeline) bookingByRef(ctx context.Context, ref string) (booking.Booking, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return p.store.BookingByID(ctx, id)
	}
	if booking.ValidRefCode(ref) {
		return p.store.BookingByRefCode(ctx, ref)
	}
	return booking.Booking{}, store.ErrNotFound
}
