package pipeline

import (
	"context"
	"testing"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
)

func TestHandleOperatorReply_Confirmation(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{
		Kind:               intent.KindConfirmation,
		ConfirmationNumber: "12345",
		Price:              897.00,
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender:  "fly@rainbow.example",
		Subject: "Re: Booking HTO-K7M2P9",
		Body:    "Confirmed! Booking #12345. Total is $897.",
	})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", got.Status)
	}
	if got.ConfirmationNumber != "12345" {
		t.Errorf("confirmation number = %q", got.ConfirmationNumber)
	}
	if got.TotalAmount != 897.00 {
		t.Errorf("total amount = %v", got.TotalAmount)
	}

	mails := r.notifier.sentTo("dana@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplConfirmationRainbow {
		t.Fatalf("expected one rainbow confirmation email, got %+v", mails)
	}
	if mails[0].data.ConfirmationNumber != "12345" {
		t.Errorf("email payload confirmation number = %q", mails[0].data.ConfirmationNumber)
	}

	subs := r.publisher.subjects()
	if len(subs) != 1 || subs[0] != events.SubjectBookingConfirmed {
		t.Errorf("published subjects = %v", subs)
	}
}

func TestHandleOperatorReply_ConfirmationGenericOperator(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorBlueHawaiian)
	seed.OperatorName = "Blue Hawaiian Helicopters"
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{Kind: intent.KindConfirmation, ConfirmationNumber: "BH-88"}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "res@bluehawaiian.example",
		Body:   "You're confirmed, reservation BH-88.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	mails := r.notifier.sentTo("dana@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplConfirmationGeneric {
		t.Fatalf("expected generic confirmation, got %+v", mails)
	}
}

func TestHandleOperatorReply_WillHandleDirectly(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{
		Kind:  intent.KindWillHandleDirectly,
		Notes: "We'll call the guest to arrange payment.",
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "We'll reach out to the customer directly to collect payment.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusAwaitingOperatorResponse {
		t.Errorf("status = %q, want awaiting_operator_response", got.Status)
	}
	if handling, _ := got.Metadata["operator_handling_directly"].(bool); !handling {
		t.Error("expected operator_handling_directly metadata flag")
	}

	mails := r.notifier.sentTo("dana@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplOperatorWillContact {
		t.Fatalf("expected operator-will-contact email, got %+v", mails)
	}
	if len(r.publisher.events) != 0 {
		t.Errorf("unexpected events: %v", r.publisher.subjects())
	}
}

func TestHandleOperatorReply_Rejection(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{
		Kind:  intent.KindRejection,
		Notes: "Fully booked that week.",
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "Sorry, we are fully booked that week.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if reason, _ := got.Metadata["rejection_reason"].(string); reason != "Fully booked that week." {
		t.Errorf("rejection_reason = %q", reason)
	}

	mails := r.notifier.sentTo("dana@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplRejection {
		t.Fatalf("expected rejection email, got %+v", mails)
	}
	subs := r.publisher.subjects()
	if len(subs) != 1 || subs[0] != events.SubjectBookingCancelled {
		t.Errorf("published subjects = %v", subs)
	}
}

func TestHandleOperatorReply_ProposedTimesRainbow(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{
		Kind:           intent.KindProposedTimes,
		AvailableDates: []string{"2026-09-15", "2026-09-16"},
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "We could do the 15th or 16th instead.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusAwaitingPayment {
		t.Errorf("status = %q, want awaiting_payment", got.Status)
	}

	customer := r.notifier.sentTo("dana@customer.example")
	if len(customer) != 1 || customer[0].tpl != mailer.TplChooseTime {
		t.Fatalf("expected choose-time email, got %+v", customer)
	}
	if len(customer[0].data.Dates) != 2 {
		t.Errorf("choose-time dates = %v", customer[0].data.Dates)
	}
	agent := r.notifier.sentTo("agent@makaitours.com")
	if len(agent) != 1 || agent[0].tpl != mailer.TplInternalArrange {
		t.Fatalf("expected internal arrange notice, got %+v", agent)
	}
}

func TestHandleOperatorReply_ProposedTimesGeneric(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorBlueHawaiian)
	seed.OperatorName = "Blue Hawaiian Helicopters"
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{
		Kind:           intent.KindProposedTimes,
		AvailableDates: []string{"2026-09-20"},
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "res@bluehawaiian.example",
		Body:   "Only the 20th is open.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	customer := r.notifier.sentTo("dana@customer.example")
	if len(customer) != 1 || customer[0].tpl != mailer.TplAlternativeDates {
		t.Fatalf("expected alternative-dates email, got %+v", customer)
	}
	if agent := r.notifier.sentTo("agent@makaitours.com"); len(agent) != 0 {
		t.Errorf("internal agent should not be paged for generic operators: %+v", agent)
	}
}

func TestHandleOperatorReply_UnclearStoresNote(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{Kind: intent.KindUnclear, Notes: "Mahalo for reaching out!"}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "Mahalo for reaching out!",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusContactedOperator {
		t.Errorf("status moved to %q on unclear reply", got.Status)
	}
	if note, _ := got.Metadata["operator_note"].(string); note != "Mahalo for reaching out!" {
		t.Errorf("operator_note = %q", note)
	}
	if len(r.notifier.sent) != 0 {
		t.Errorf("unexpected sends: %+v", r.notifier.sent)
	}
}

func TestHandleOperatorReply_OracleFailureDegradesToNote(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.replyErr = errSendFailed

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "Confirmed! Booking #999",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusContactedOperator {
		t.Errorf("status moved to %q while the oracle was down", got.Status)
	}
	if note, _ := got.Metadata["operator_note"].(string); note != "Confirmed! Booking #999" {
		t.Errorf("operator_note = %q", note)
	}
}

func TestHandleOperatorReply_LookupLadder(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{Kind: intent.KindConfirmation, ConfirmationNumber: "X1"}

	// Ref code embedded in the body, unknown sender.
	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "frontdesk@rainbowpartner.example",
		Body:   "Re HTO-K7M2P9: confirmed, conf X1.",
	})
	if !res.Success {
		t.Fatalf("expected body ref-code match, got %+v", res)
	}

	// No identifiers at all, but the sender is a registry operator with
	// one open booking.
	r2 := newTestRig(seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow))
	r2.oracle.reply = intent.OperatorReply{Kind: intent.KindConfirmation}
	res = r2.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "Confirmed.",
	})
	if !res.Success {
		t.Fatalf("expected sender-operator match, got %+v", res)
	}
}

func TestHandleOperatorReply_NoMatchIsSideEffectFree(t *testing.T) {
	r := newTestRig()
	r.oracle.reply = intent.OperatorReply{Kind: intent.KindConfirmation}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "stranger@nowhere.example",
		Body:   "Confirmed!",
	})
	if res.Success || res.Code != CodeNotFound {
		t.Fatalf("expected not_found, got %+v", res)
	}
	if len(r.notifier.sent) != 0 || len(r.store.patches) != 0 {
		t.Error("no-match reply must leave no side effects")
	}
}

func TestHandleOperatorReply_StatusAdvancesDespiteSendFailure(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.reply = intent.OperatorReply{Kind: intent.KindConfirmation, ConfirmationNumber: "77"}
	r.notifier.failTo["dana@customer.example"] = true

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender: "fly@rainbow.example",
		Body:   "Confirmed, number 77.",
	})
	if !res.Success {
		t.Fatalf("expected success despite send failure, got %+v", res)
	}
	if got := r.store.get(t, seed.ID); got.Status != booking.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", got.Status)
	}
}

func TestHandleOperatorReply_EmptyBody(t *testing.T) {
	r := newTestRig()
	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{Sender: "fly@rainbow.example"})
	if res.Success || res.Code != CodeValidation {
		t.Fatalf("expected validation error, got %+v", res)
	}
}

func TestHandleOperatorReply_StaleWriteRetriesAndConverges(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.store.staleOnce = true
	r.oracle.reply = intent.OperatorReply{
		Kind:               intent.KindConfirmation,
		ConfirmationNumber: "12345",
	}

	res := r.pipe.HandleOperatorReply(context.Background(), OperatorMessage{
		Sender:  "fly@rainbow.example",
		Subject: "Re: Booking HTO-K7M2P9",
		Body:    "Confirmed! Booking #12345.",
	})

	if !res.Success {
		t.Fatalf("a lost compare-and-swap must converge on retry, got %+v", res)
	}
	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusConfirmed || got.ConfirmationNumber != "12345" {
		t.Errorf("booking after retry = %+v", got)
	}
	if mails := r.notifier.sentTo("dana@customer.example"); len(mails) != 1 {
		t.Errorf("confirmation email must go out exactly once, got %d", len(mails))
	}
}
