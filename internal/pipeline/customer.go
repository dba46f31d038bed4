package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// CustomerMessage is an email from an address outside the operator and
// internal registries.
type CustomerMessage struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// HandleCustomerReply interprets a customer email. An existing booking
// for the sender absorbs the message into its record; otherwise a
// booking request opens a new collecting_info booking, and anything
// else gets the how-to-book pointer.
func (p *Pipeline) HandleCustomerReply(ctx context.Context, msg CustomerMessage) Result {
	if err := p.validate.Var(msg.Sender, "required,email"); err != nil {
		return failure(CodeValidation, "sender must be a valid email address")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return failure(CodeValidation, "message body is required")
	}

	inq, err := p.oracle.ClassifyInquiry(ctx, msg.Sender, msg.Subject, msg.Body)
	if err != nil {
		// A dead oracle must not lose the message. Degrade to an empty
		// interpretation; the existing-booking path still records the
		// raw text below.
		p.logger.Error("inquiry classification failed", "sender", msg.Sender, "error", err)
		inq = intent.Inquiry{}
	}

	if inq.IsSpam && inq.Confidence > intent.SpamThreshold {
		p.logger.Info("customer email classified as spam", "sender", msg.Sender, "confidence", inq.Confidence)
		if p.spamAutoReply {
			if res := p.notifier.Send(ctx, msg.Sender, mailer.TplSpamDeflection, mailer.Payload{}); !res.Success {
				p.logger.Warn("spam deflection reply failed", "sender", msg.Sender, "error", res.Err)
			}
		}
		return Result{Success: true, Data: map[string]any{"classified": "spam"}}
	}

	b, err := p.store.LatestBookingByEmail(ctx, msg.Sender)
	switch {
	case err == nil:
		return p.customerFollowUp(ctx, b, msg, inq)
	case errors.Is(err, store.ErrNotFound):
		// fall through to new-contact handling
	default:
		p.logger.Error("booking lookup by email failed", "sender", msg.Sender, "error", err)
		return failure("", "booking lookup failed")
	}

	if inq.IsBookingRequest {
		return p.customerNewBooking(ctx, msg, inq)
	}

	if res := p.notifier.Send(ctx, msg.Sender, mailer.TplHowToBook, mailer.Payload{}); !res.Success {
		p.logger.Warn("how-to-book reply failed", "sender", msg.Sender, "error", res.Err)
	}
	return Result{Success: true, Data: map[string]any{"classified": "general_inquiry"}}
}

// customerFollowUp folds a message from a known customer into their
// latest booking. Status never moves here; only an operator reply or an
// explicit status update advances a booking.
func (p *Pipeline) customerFollowUp(ctx context.Context, b booking.Booking, msg CustomerMessage, inq intent.Inquiry) Result {
	contact := booking.ContactFields{
		Name:          inq.Fields.Name,
		Phone:         inq.Fields.Phone,
		PartySize:     inq.Fields.PartySize,
		PreferredDate: inq.Fields.PreferredDate,
		TimeWindow:    inq.Fields.TimeWindow,
		Hotel:         inq.Fields.Hotel,
		SpecialReqs:   inq.Fields.SpecialRequests,
		TotalWeight:   inq.Fields.TotalWeightLbs,
	}
	changed := b.ApplyContact(contact)

	err := p.updateFresh(ctx, b, func(cur booking.Booking) store.Patch {
		changed := cur.ApplyContact(contact)
		meta := booking.AppendConversation(cur.Metadata, conversationEntry(msg), time.Now())
		if changed {
			return buildContactPatch(cur, meta)
		}
		return store.Patch{Metadata: meta}
	})
	if err != nil {
		p.logger.Error("failed to record customer follow-up", "ref_code", b.RefCode, "error", err)
		return failure("", "failed to record message")
	}

	data := payloadFor(b)
	if res := p.notifier.Send(ctx, b.CustomerEmail, mailer.TplCustomerAck, data); !res.Success {
		p.logger.Warn("customer acknowledgement failed", "ref_code", b.RefCode, "error", res.Err)
	}

	return Result{Success: true, Data: map[string]any{
		"ref_code": b.RefCode,
		"status":   string(b.Status),
		"updated":  changed,
	}}
}

// customerNewBooking opens a collecting_info booking from a first-touch
// email. Email bookings skip the call path's completeness gate: the
// thread itself collects whatever is missing.
func (p *Pipeline) customerNewBooking(ctx context.Context, msg CustomerMessage, inq intent.Inquiry) Result {
	operatorName, operator := p.chooseOperator(inq.Fields.OperatorHint, msg.Body)

	weight := inq.Fields.TotalWeightLbs
	if weight < booking.MinTotalWeightLbs {
		weight = booking.PlaceholderWeightLbs
	}

	b := booking.Booking{
		Status:          booking.StatusCollectingInfo,
		CustomerName:    inq.Fields.Name,
		CustomerEmail:   msg.Sender,
		CustomerPhone:   inq.Fields.Phone,
		PartySize:       inq.Fields.PartySize,
		PreferredDate:   inq.Fields.PreferredDate,
		TimeWindow:      inq.Fields.TimeWindow,
		DoorsOff:        inq.Fields.DoorsOff,
		Hotel:           inq.Fields.Hotel,
		SpecialRequests: inq.Fields.SpecialRequests,
		TotalWeightLbs:  weight,
		OperatorName:    operatorName,
		Operator:        operator,
		Metadata: booking.AppendConversation(booking.Metadata{
			"source": "email",
			"notes":  inq.Notes,
		}, conversationEntry(msg), time.Now()),
	}

	created, err := p.store.CreateBooking(ctx, b)
	if err != nil {
		p.logger.Error("failed to create booking from email", "sender", msg.Sender, "error", err)
		return failure("", "failed to create booking")
	}

	p.logger.Info("booking created from email",
		"ref_code", created.RefCode,
		"operator", string(created.Operator),
		"party_size", created.PartySize,
	)

	data := payloadFor(created)
	if res := p.notifier.Send(ctx, created.CustomerEmail, mailer.TplCustomerReceived, data); !res.Success {
		p.logger.Warn("booking-received email failed", "ref_code", created.RefCode, "error", res.Err)
	}

	p.publish(events.SubjectBookingCreated, events.BookingEvent{
		BookingID: created.ID.String(),
		RefCode:   created.RefCode,
		Status:    string(created.Status),
		Operator:  string(created.Operator),
		At:        time.Now().UTC().Format(time.RFC3339),
	})

	return Result{Success: true, Data: map[string]any{
		"ref_code": created.RefCode,
		"status":   string(created.Status),
	}}
}

// conversationEntry flattens an inbound email into one conversation-log
// message.
func conversationEntry(msg CustomerMessage) string {
	return "From: " + msg.Sender + "\nSubject: " + msg.Subject + "\n\n" + msg.Body
}

// chooseOperator resolves an operator from the extraction hint, then
// the raw text, then the registry's primary entry.
func (p *Pipeline) chooseOperator(hint, text string) (name string, id booking.OperatorID) {
	if op := booking.ResolveOperator(hint); op != booking.OperatorOther {
		if entry, ok := p.directory.OperatorByID(op); ok {
			return entry.Name, op
		}
		return hint, op
	}
	if op := booking.ResolveOperator(text); op != booking.OperatorOther {
		if entry, ok := p.directory.OperatorByID(op); ok {
			return entry.Name, op
		}
		return string(op), op
	}
	primary := p.directory.PrimaryOperator()
	return primary.Name, primary.ID()
}

// buildContactPatch lifts the merged contact fields of b into a store
// patch alongside the updated metadata.
func buildContactPatch(b booking.Booking, meta booking.Metadata) store.Patch {
	return store.Patch{
		CustomerName:    &b.CustomerName,
		CustomerPhone:   &b.CustomerPhone,
		PartySize:       &b.PartySize,
		PreferredDate:   &b.PreferredDate,
		TimeWindow:      &b.TimeWindow,
		Hotel:           &b.Hotel,
		SpecialRequests: &b.SpecialRequests,
		TotalWeightLbs:  &b.TotalWeightLbs,
		Metadata:        meta,
	}
}
