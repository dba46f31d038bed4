package pipeline

import (
	"context"
	"testing"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/events"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
)

func TestHandleCustomerReply_NewBookingRequest(t *testing.T) {
	r := newTestRig()
	r.oracle.inquiry = intent.Inquiry{
		IsBookingRequest: true,
		Confidence:       0.9,
		Fields: intent.Fields{
			Name:          "Jon Rees",
			PartySize:     2,
			PreferredDate: "2026-10-02",
			TimeWindow:    "sunset",
			OperatorHint:  "Blue Hawaiian",
		},
	}

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender:  "jon@customer.example",
		Subject: "Helicopter tour",
		Body:    "Hi, two of us would love a sunset flight with Blue Hawaiian on Oct 2.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	if len(r.store.created) != 1 {
		t.Fatalf("expected one booking, got %d", len(r.store.created))
	}
	created := r.store.created[0]
	if created.Status != booking.StatusCollectingInfo {
		t.Errorf("status = %q, want collecting_info", created.Status)
	}
	if created.Operator != booking.OperatorBlueHawaiian {
		t.Errorf("operator = %q, want blue_hawaiian", created.Operator)
	}
	if created.TotalWeightLbs != booking.PlaceholderWeightLbs {
		t.Errorf("weight = %v, want placeholder", created.TotalWeightLbs)
	}
	if !booking.ValidRefCode(created.RefCode) {
		t.Errorf("ref code %q does not match the format", created.RefCode)
	}

	mails := r.notifier.sentTo("jon@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplCustomerReceived {
		t.Fatalf("expected booking-received email, got %+v", mails)
	}
	subs := r.publisher.subjects()
	if len(subs) != 1 || subs[0] != events.SubjectBookingCreated {
		t.Errorf("published subjects = %v", subs)
	}
}

func TestHandleCustomerReply_ExistingBookingAbsorbsMessage(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	seed.Hotel = ""
	r := newTestRig(seed)
	r.oracle.inquiry = intent.Inquiry{
		IsBookingRequest: true,
		Fields:           intent.Fields{Hotel: "Halekulani", PartySize: 4},
	}

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender:  "dana@customer.example",
		Subject: "One more thing",
		Body:    "We're staying at the Halekulani, and it's four of us now.",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got := r.store.get(t, seed.ID)
	if got.Status != booking.StatusContactedOperator {
		t.Errorf("customer message must not move status, got %q", got.Status)
	}
	if got.Hotel != "Halekulani" || got.PartySize != 4 {
		t.Errorf("contact merge failed: hotel=%q party=%d", got.Hotel, got.PartySize)
	}
	if log, ok := got.Metadata["conversation_log"].([]any); !ok || len(log) != 1 {
		t.Errorf("conversation log not appended: %v", got.Metadata["conversation_log"])
	}
	if len(r.store.created) != 0 {
		t.Error("existing customer must not get a second booking")
	}

	mails := r.notifier.sentTo("dana@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplCustomerAck {
		t.Fatalf("expected acknowledgement, got %+v", mails)
	}
}

func TestHandleCustomerReply_GeneralInquiry(t *testing.T) {
	r := newTestRig()
	r.oracle.inquiry = intent.Inquiry{IsBookingRequest: false, Confidence: 0.8}

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender: "curious@customer.example",
		Body:   "Do you fly over the volcano?",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(r.store.created) != 0 {
		t.Error("general inquiry must not create a booking")
	}
	mails := r.notifier.sentTo("curious@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplHowToBook {
		t.Fatalf("expected how-to-book pointer, got %+v", mails)
	}
}

func TestHandleCustomerReply_SpamDropped(t *testing.T) {
	r := newTestRig()
	r.oracle.inquiry = intent.Inquiry{IsSpam: true, Confidence: 0.95}

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender: "promo@spammy.example",
		Body:   "Grow your audience with our SEO package!",
	})
	if !res.Success {
		t.Fatalf("spam handling should report success, got %+v", res)
	}
	if len(r.store.created) != 0 || len(r.store.patches) != 0 {
		t.Error("spam must not touch the store")
	}
	if len(r.notifier.sent) != 0 {
		t.Error("spam deflection is off by default")
	}
}

func TestHandleCustomerReply_SpamBelowThresholdStillProcessed(t *testing.T) {
	r := newTestRig()
	r.oracle.inquiry = intent.Inquiry{IsSpam: true, Confidence: 0.5}

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender: "maybe@customer.example",
		Body:   "hello??",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	// Not confidently spam, not a booking request: how-to-book path.
	mails := r.notifier.sentTo("maybe@customer.example")
	if len(mails) != 1 || mails[0].tpl != mailer.TplHowToBook {
		t.Fatalf("expected how-to-book, got %+v", mails)
	}
}

func TestHandleCustomerReply_InvalidSender(t *testing.T) {
	r := newTestRig()
	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender: "not-an-address",
		Body:   "book me please",
	})
	if res.Success || res.Code != CodeValidation {
		t.Fatalf("expected validation error, got %+v", res)
	}
}

func TestHandleCustomerReply_OracleFailurePreservesMessage(t *testing.T) {
	seed := seedBooking(booking.StatusContactedOperator, booking.OperatorRainbow)
	r := newTestRig(seed)
	r.oracle.inquiryErr = errSendFailed

	res := r.pipe.HandleCustomerReply(context.Background(), CustomerMessage{
		Sender: "dana@customer.example",
		Body:   "Any news on our flight?",
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	got := r.store.get(t, seed.ID)
	if _, ok := got.Metadata["conversation_log"].([]any); !ok {
		t.Error("message must be recorded even when the oracle is down")
	}
}
