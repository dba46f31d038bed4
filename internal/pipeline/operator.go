package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// OperatorMessage is an operator's reply as delivered by the intake
// layer. Only Body is required; the rest sharpens booking lookup.
type OperatorMessage struct {
	Body      string `json:"body"`
	Sender    string `json:"sender,omitempty"`
	Subject   string `json:"subject,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
	RefCode   string `json:"ref_code,omitempty"`
}

// HandleOperatorReply interprets an operator's reply, advances the
// booking status, and fires the matching customer notification. The
// status update always lands on the classification outcome; a failed
// customer send is logged, recorded, and never rolled back.
func (p *Pipeline) HandleOperatorReply(ctx context.Context, msg OperatorMessage) Result {
	if strings.TrimSpace(msg.Body) == "" {
		return failure(CodeValidation, "reply body is required")
	}

	b, err := p.locateBooking(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("operator reply matched no booking", "sender", msg.Sender, "subject", msg.Subject)
			return failure(CodeNotFound, "no booking matches this reply")
		}
		p.logger.Error("booking lookup failed", "error", err)
		return failure("", "booking lookup failed")
	}

	// Operator identity: sender address first, stored identity second.
	operator := b.Operator
	operatorName := b.OperatorName
	if entry, ok := p.directory.OperatorByAddress(msg.Sender); ok {
		operator = entry.ID()
		operatorName = entry.Name
	}
	if operator == "" {
		operator = booking.ResolveOperator(operatorName)
	}

	reply, err := p.oracle.ClassifyReply(ctx, msg.Body)
	if err != nil {
		// Oracle outage degrades to the fallback-note branch: the reply
		// text is preserved for a human, nothing else moves.
		p.logger.Error("reply classification failed, storing reply as note", "ref_code", b.RefCode, "error", err)
		reply = intent.OperatorReply{Kind: intent.KindUnclear, Notes: msg.Body}
	}

	p.logger.Info("operator reply interpreted",
		"ref_code", b.RefCode,
		"operator", string(operator),
		"kind", string(reply.Kind),
	)

	switch reply.Kind {
	case intent.KindConfirmation:
		return p.operatorConfirmed(ctx, b, operator, operatorName, reply)
	case intent.KindWillHandleDirectly:
		return p.operatorWillContact(ctx, b, operator, operatorName, reply)
	case intent.KindRejection:
		return p.operatorRejected(ctx, b, operator, operatorName, reply)
	case intent.KindProposedTimes:
		return p.operatorProposedTimes(ctx, b, operator, operatorName, reply)
	default:
		return p.operatorNote(ctx, b, reply, msg.Body)
	}
}

// locateBooking walks the lookup ladder: explicit id, explicit ref
// code, ref code embedded in subject or body, latest booking for the
// sending operator.
func (p *Pipeline) locateBooking(ctx context.Context, msg OperatorMessage) (booking.Booking, error) {
	if msg.BookingID != "" {
		if id, err := uuid.Parse(msg.BookingID); err == nil {
			if b, err := p.store.BookingByID(ctx, id); err == nil {
				return b, nil
			}
		}
	}
	if msg.RefCode != "" {
		if b, err := p.store.BookingByRefCode(ctx, msg.RefCode); err == nil {
			return b, nil
		}
	}
	if code := booking.ExtractRefCode(msg.Subject + "\n" + msg.Body); code != "" {
		if b, err := p.store.BookingByRefCode(ctx, code); err == nil {
			return b, nil
		}
	}
	if entry, ok := p.directory.OperatorByAddress(msg.Sender); ok {
		if b, err := p.store.LatestBookingByOperator(ctx, entry.ID()); err == nil {
			return b, nil
		}
	}
	return booking.Booking{}, store.ErrNotFound
}

func (p *Pipeline) operatorConfirmed(ctx context.Context, b booking.Booking, op booking.OperatorID, opName string, reply intent.OperatorReply) Result {
	status := booking.StatusConfirmed
	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		meta := booking.MergeMetadata(cur.Metadata, booking.Metadata{
			"confirmed_at":  time.Now().UTC().Format(time.RFC3339),
			"operator_note": reply.Notes,
		})
		patch := store.Patch{Status: &status, Metadata: meta, Operator: &op, OperatorName: &opName}
		if reply.ConfirmationNumber != "" {
			patch.ConfirmationNumber = &reply.ConfirmationNumber
		}
		if reply.Price > 0 {
			patch.TotalAmount = &reply.Price
		}
		return patch
	})
	if err != nil {
		p.logger.Error("failed to persist confirmation", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to persist confirmation")
	}

	data := payloadFor(b)
	data.OperatorName = opName
	data.ConfirmationNumber = reply.ConfirmationNumber
	data.TotalAmount = reply.Price

	tpl := mailer.TplConfirmationGeneric
	if op.Rainbow() {
		tpl = mailer.TplConfirmationRainbow
	}
	if res := p.notifier.Send(ctx, b.CustomerEmail, tpl, data); !res.Success {
		p.logger.Error("confirmation email failed", "ref_code", b.RefCode, "error", res.Err)
	}

	p.publish(events.SubjectBookingConfirmed, events.BookingEvent{
		BookingID: b.ID.String(),
		RefCode:   b.RefCode,
		Status:    string(status),
		Operator:  string(op),
		At:        time.Now().UTC().Format(time.RFC3339),
	})

	return Result{Success: true, Data: map[string]any{
		"ref_code":            b.RefCode,
		"status":              string(status),
		"kind":                string(reply.Kind),
		"confirmation_number": reply.ConfirmationNumber,
	}}
}

func (p *Pipeline) operatorWillContact(ctx context.Context, b booking.Booking, op booking.OperatorID, opName string, reply intent.OperatorReply) Result {
	status := booking.StatusAwaitingOperatorResponse
	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		meta := booking.MergeMetadata(cur.Metadata, booking.Metadata{
			"operator_handling_directly": true,
			"operator_note":              reply.Notes,
		})
		return store.Patch{Status: &status, Metadata: meta, Operator: &op, OperatorName: &opName}
	})
	if err != nil {
		p.logger.Error("failed to persist direct-handling status", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to persist status")
	}

	data := payloadFor(b)
	data.OperatorName = opName
	if res := p.notifier.Send(ctx, b.CustomerEmail, mailer.TplOperatorWillContact, data); !res.Success {
		p.logger.Error("operator-will-contact email failed", "ref_code", b.RefCode, "error", res.Err)
	}

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(status),
		"kind":     string(reply.Kind),
	}}
}

func (p *Pipeline) operatorRejected(ctx context.Context, b booking.Booking, op booking.OperatorID, opName string, reply intent.OperatorReply) Result {
	status := booking.StatusCancelled
	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		meta := booking.MergeMetadata(cur.Metadata, booking.Metadata{
			"rejection_reason": reply.Notes,
			"rejected_at":      time.Now().UTC().Format(time.RFC3339),
		})
		return store.Patch{Status: &status, Metadata: meta, Operator: &op, OperatorName: &opName}
	})
	if err != nil {
		p.logger.Error("failed to persist rejection", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to persist rejection")
	}

	data := payloadFor(b)
	data.OperatorName = opName
	data.Reason = reply.Notes
	if res := p.notifier.Send(ctx, b.CustomerEmail, mailer.TplRejection, data); !res.Success {
		p.logger.Error("rejection email failed", "ref_code", b.RefCode, "error", res.Err)
	}

	p.publish(events.SubjectBookingCancelled, events.BookingEvent{
		BookingID: b.ID.String(),
		RefCode:   b.RefCode,
		Status:    string(status),
		Operator:  string(op),
		At:        time.Now().UTC().Format(time.RFC3339),
	})

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(status),
		"kind":     string(reply.Kind),
	}}
}

// operatorProposedTimes handles an operator offering dates without
// confirming or rejecting. Rainbow bookings additionally page the
// internal agent to arrange the time manually; everyone else gets the
// generic alternative-dates notice.
func (p *Pipeline) operatorProposedTimes(ctx context.Context, b booking.Booking, op booking.OperatorID, opName string, reply intent.OperatorReply) Result {
	status := booking.StatusAwaitingPayment
	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		meta := booking.MergeMetadata(cur.Metadata, booking.Metadata{
			"proposed_dates": reply.AvailableDates,
			"operator_note":  reply.Notes,
		})
		return store.Patch{Status: &status, Metadata: meta, Operator: &op, OperatorName: &opName}
	})
	if err != nil {
		p.logger.Error("failed to persist proposed times", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to persist proposed times")
	}

	data := payloadFor(b)
	data.OperatorName = opName
	data.Dates = reply.AvailableDates
	data.Notes = reply.Notes

	if op.Rainbow() {
		if res := p.notifier.Send(ctx, b.CustomerEmail, mailer.TplChooseTime, data); !res.Success {
			p.logger.Error("choose-time email failed", "ref_code", b.RefCode, "error", res.Err)
		}
		if res := p.notifier.Send(ctx, p.directory.InternalAgent, mailer.TplInternalArrange, data); !res.Success {
			p.logger.Error("internal arrange notice failed", "ref_code", b.RefCode, "error", res.Err)
		}
	} else {
		if res := p.notifier.Send(ctx, b.CustomerEmail, mailer.TplAlternativeDates, data); !res.Success {
			p.logger.Error("alternative-dates email failed", "ref_code", b.RefCode, "error", res.Err)
		}
	}

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(status),
		"kind":     string(reply.Kind),
		"dates":    reply.AvailableDates,
	}}
}

// operatorNote is the fallback branch: nothing matched, so the reply is
// preserved for a human and the status does not move.
func (p *Pipeline) operatorNote(ctx context.Context, b booking.Booking, reply intent.OperatorReply, rawBody string) Result {
	note := reply.Notes
	if note == "" {
		note = rawBody
	}
	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		meta := booking.MergeMetadata(cur.Metadata, booking.Metadata{
			"operator_note":    note,
			"operator_note_at": time.Now().UTC().Format(time.RFC3339),
		})
		return store.Patch{Metadata: meta}
	})
	if err != nil {
		p.logger.Error("failed to store operator note", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to store operator note")
	}

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(b.Status),
		"kind":     string(intent.KindUnclear),
	}}
}
