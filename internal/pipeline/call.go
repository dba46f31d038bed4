package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/transcript"
)

// HandleCall interprets a finished phone call. Unlike the email path,
// calls enforce the full completeness gate: the caller is on the line
// once, so a booking only opens when every required field plus a real
// combined weight came through.
func (p *Pipeline) HandleCall(ctx context.Context, ev transcript.CallEvent) Result {
	if !ev.Ended() {
		p.logger.Info("ignoring in-progress call event", "call_id", ev.CallID, "status", ev.Status)
		return Result{Success: true, Data: map[string]any{"classified": "in_progress"}}
	}

	if ev.Text() == "" {
		return failure(CodeValidation, "call transcript is empty")
	}

	ext, err := p.extractCall(ctx, ev)
	if err != nil {
		p.logger.Error("call extraction failed", "call_id", ev.CallID, "error", err)
		return Result{Success: true, Data: map[string]any{
			"classified": "deflected",
			"message":    deflectionMessage,
		}}
	}

	if ext.IsSpam && ext.Confidence > intent.SpamThreshold {
		p.logger.Info("call classified as spam", "call_id", ev.CallID, "confidence", ext.Confidence)
		return Result{Success: true, Data: map[string]any{
			"classified": "spam",
			"message":    "Thank you for calling. Goodbye.",
		}}
	}

	if !ext.IsBookingRequest || ext.Confidence < intent.MinCallConfidence {
		p.logger.Info("call is not a booking request", "call_id", ev.CallID, "confidence", ext.Confidence)
		return Result{Success: true, Data: map[string]any{
			"classified": "deflected",
			"message":    deflectionMessage,
		}}
	}

	if missing := missingCallFields(ext.Fields); len(missing) > 0 {
		p.logger.Info("call booking request incomplete", "call_id", ev.CallID, "missing", missing)
		return Result{Success: true, Data: map[string]any{
			"classified": "incomplete",
			"missing":    missing,
			"message": fmt.Sprintf(
				"Thanks for calling! To finish your helicopter tour booking we still need: %s. Please call back or email us with those details.",
				strings.Join(missing, ", ")),
		}}
	}

	return p.callNewBooking(ctx, ev, ext)
}

// extractCall runs the oracle over the transcript. Long multi-hold
// calls exceed one oracle pass, so they are chunked and extracted
// piecewise: later chunks override the fields earlier ones found, and a
// single booking-request segment marks the whole call.
func (p *Pipeline) extractCall(ctx context.Context, ev transcript.CallEvent) (intent.CallExtraction, error) {
	chunks := transcript.ChunkTurns(ev.Turns)
	if len(chunks) <= 1 {
		return p.oracle.ExtractCall(ctx, ev.CallerPhone, ev.Text())
	}

	p.logger.Info("chunking long call for extraction", "call_id", ev.CallID, "chunks", len(chunks))
	merged := intent.CallExtraction{IsSpam: true}
	for _, c := range chunks {
		ext, err := p.oracle.ExtractCall(ctx, ev.CallerPhone, transcript.Flatten(c.Turns))
		if err != nil {
			return intent.CallExtraction{}, err
		}
		merged.Fields = merged.Fields.Merge(ext.Fields)
		merged.IsSpam = merged.IsSpam && ext.IsSpam
		switch {
		case ext.IsBookingRequest && !merged.IsBookingRequest:
			merged.IsBookingRequest = true
			merged.Confidence = ext.Confidence
		case ext.IsBookingRequest == merged.IsBookingRequest && ext.Confidence > merged.Confidence:
			merged.Confidence = ext.Confidence
		}
		if ext.Notes != "" {
			merged.Notes = ext.Notes
		}
	}
	return merged, nil
}

const deflectionMessage = "Thank you for calling. For helicopter tour bookings, please email us with your preferred date, party size, and the combined weight of your group."

// missingCallFields lists the unmet requirements in a fixed order so the
// caller hears a stable prompt.
func missingCallFields(f intent.Fields) []string {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "your name")
	}
	if f.Email == "" {
		missing = append(missing, "an email address")
	}
	if f.PartySize <= 0 {
		missing = append(missing, "party size")
	}
	if f.PreferredDate == "" {
		missing = append(missing, "preferred date")
	}
	if f.TimeWindow == "" {
		missing = append(missing, "preferred time of day")
	}
	if f.TotalWeightLbs < booking.MinTotalWeightLbs {
		missing = append(missing, "combined passenger weight")
	}
	return missing
}

func (p *Pipeline) callNewBooking(ctx context.Context, ev transcript.CallEvent, ext intent.CallExtraction) Result {
	hint := ext.Fields.OperatorHint
	operatorName, operator := p.chooseOperator(hint, ev.Text())

	phone := ext.Fields.Phone
	if phone == "" {
		phone = ev.CallerPhone
	}

	b := booking.Booking{
		Status:          booking.StatusPending,
		CustomerName:    ext.Fields.Name,
		CustomerEmail:   ext.Fields.Email,
		CustomerPhone:   phone,
		PartySize:       ext.Fields.PartySize,
		PreferredDate:   ext.Fields.PreferredDate,
		TimeWindow:      ext.Fields.TimeWindow,
		DoorsOff:        ext.Fields.DoorsOff,
		Hotel:           ext.Fields.Hotel,
		SpecialRequests: ext.Fields.SpecialRequests,
		TotalWeightLbs:  ext.Fields.TotalWeightLbs,
		OperatorName:    operatorName,
		Operator:        operator,
		Metadata: booking.Metadata{
			"source":  "phone",
			"call_id": ev.CallID,
			"notes":   ext.Notes,
		},
	}

	created, err := p.store.CreateBooking(ctx, b)
	if err != nil {
		p.logger.Error("failed to create booking from call", "call_id", ev.CallID, "error", err)
		return failure("", "failed to create booking")
	}

	p.logger.Info("booking created from call",
		"ref_code", created.RefCode,
		"operator", string(created.Operator),
		"party_size", created.PartySize,
		"total_weight_lbs", created.TotalWeightLbs,
	)

	data := payloadFor(created)

	// The operator request goes to the registry address for the resolved
	// operator; unknown operators page the primary entry.
	opEntry, ok := p.directory.OperatorByID(created.Operator)
	if !ok {
		opEntry = p.directory.PrimaryOperator()
	}
	if opEntry.Email != "" {
		if res := p.notifier.Send(ctx, opEntry.Email, mailer.TplOperatorRequest, data); !res.Success {
			p.logger.Error("operator request email failed", "ref_code", created.RefCode, "error", res.Err)
		}
	}
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
		"message": fmt.Sprintf(
			"You're all set! Your booking reference is %s. We've sent the request to %s and you'll get a confirmation email shortly.",
			created.RefCode, operatorName),
	}}
}

// HandleCallEvent is the NATS adapter for the inbound-call subject.
func (p *Pipeline) HandleCallEvent(subject string, data []byte) {
	var ev transcript.CallEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		p.logger.Error("failed to parse call event", "error", err)
		return
	}
	res := p.HandleCall(context.Background(), ev)
	if !res.Success {
		p.logger.Warn("call handling unsuccessful", "call_id", ev.CallID, "code", res.Code, "error", res.Error)
	}
}
