package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makai-tours/skydesk/internal/availability"
	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/config"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// fakeStore is an in-memory Store that records every patch it applies.
type fakeStore struct {
	bookings  map[uuid.UUID]booking.Booking
	patches   []store.Patch
	created   []booking.Booking
	createErr error
	updateErr error

	// staleOnce makes the next conditional update lose to a simulated
	// concurrent writer: the row's timestamp moves and ErrStale comes
	// back, exactly once.
	staleOnce bool
}

func newFakeStore(seed ...booking.Booking) *fakeStore {
	s := &fakeStore{bookings: map[uuid.UUID]booking.Booking{}}
	for _, b := range seed {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *fakeStore) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	if s.createErr != nil {
		return booking.Booking{}, s.createErr
	}
	b.ID = uuid.New()
	b.RefCode = booking.NewRefCode()
	s.bookings[b.ID] = b
	s.created = append(s.created, b)
	return b, nil
}

func (s *fakeStore) BookingByID(_ context.Context, id uuid.UUID) (booking.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) BookingByRefCode(_ context.Context, refCode string) (booking.Booking, error) {
	for _, b := range s.bookings {
		if b.RefCode == refCode {
			return b, nil
		}
	}
	return booking.Booking{}, store.ErrNotFound
}

func (s *fakeStore) LatestBookingByEmail(_ context.Context, email string) (booking.Booking, error) {
	for _, b := range s.bookings {
		if strings.EqualFold(b.CustomerEmail, email) {
			return b, nil
		}
	}
	return booking.Booking{}, store.ErrNotFound
}

func (s *fakeStore) LatestBookingByOperator(_ context.Context, op booking.OperatorID) (booking.Booking, error) {
	for _, b := range s.bookings {
		if b.Operator == op {
			return b, nil
		}
	}
	return booking.Booking{}, store.ErrNotFound
}

func (s *fakeStore) UpdateBooking(_ context.Context, id uuid.UUID, p store.Patch) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.staleOnce && p.ExpectedUpdatedAt != nil {
		s.staleOnce = false
		b.UpdatedAt = time.Now()
		s.bookings[id] = b
		return store.ErrStale
	}
	if p.ExpectedUpdatedAt != nil && !p.ExpectedUpdatedAt.Equal(b.UpdatedAt) {
		return store.ErrStale
	}
	s.patches = append(s.patches, p)
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Metadata != nil {
		b.Metadata = p.Metadata
	}
	if p.CustomerName != nil {
		b.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		b.CustomerEmail = *p.CustomerEmail
	}
	if p.CustomerPhone != nil {
		b.CustomerPhone = *p.CustomerPhone
	}
	if p.PartySize != nil {
		b.PartySize = *p.PartySize
	}
	if p.PreferredDate != nil {
		b.PreferredDate = *p.PreferredDate
	}
	if p.TimeWindow != nil {
		b.TimeWindow = *p.TimeWindow
	}
	if p.Hotel != nil {
		b.Hotel = *p.Hotel
	}
	if p.SpecialRequests != nil {
		b.SpecialRequests = *p.SpecialRequests
	}
	if p.TotalWeightLbs != nil {
		b.TotalWeightLbs = *p.TotalWeightLbs
	}
	if p.OperatorName != nil {
		b.OperatorName = *p.OperatorName
	}
	if p.Operator != nil {
		b.Operator = *p.Operator
	}
	if p.ConfirmationNumber != nil {
		b.ConfirmationNumber = *p.ConfirmationNumber
	}
	if p.TotalAmount != nil {
		b.TotalAmount = *p.TotalAmount
	}
	b.UpdatedAt = time.Now()
	s.bookings[id] = b
	return nil
}

func (s *fakeStore) get(t *testing.T, id uuid.UUID) booking.Booking {
	t.Helper()
	b, ok := s.bookings[id]
	if !ok {
		t.Fatalf("booking %s not in store", id)
	}
	return b
}

// fakeOracle returns canned interpretations. callQueue, when populated,
// serves one extraction per call in order; call is the fallback.
type fakeOracle struct {
	reply      intent.OperatorReply
	replyErr   error
	inquiry    intent.Inquiry
	inquiryErr error
	call       intent.CallExtraction
	callQueue  []intent.CallExtraction
	callTexts  []string
	callErr    error
}

func (o *fakeOracle) ClassifyReply(context.Context, string) (intent.OperatorReply, error) {
	return o.reply, o.replyErr
}

func (o *fakeOracle) ClassifyInquiry(context.Context, string, string, string) (intent.Inquiry, error) {
	return o.inquiry, o.inquiryErr
}

func (o *fakeOracle) ExtractCall(_ context.Context, _ string, text string) (intent.CallExtraction, error) {
	o.callTexts = append(o.callTexts, text)
	if len(o.callQueue) > 0 {
		next := o.callQueue[0]
		o.callQueue = o.callQueue[1:]
		return next, o.callErr
	}
	return o.call, o.callErr
}

type sentMail struct {
	to   string
	tpl  mailer.Template
	data mailer.Payload
}

// fakeNotifier records every send; failTo addresses report failure.
type fakeNotifier struct {
	sent   []sentMail
	failTo map[string]bool
}

func (n *fakeNotifier) Send(_ context.Context, to string, tpl mailer.Template, data mailer.Payload) mailer.Result {
	n.sent = append(n.sent, sentMail{to: to, tpl: tpl, data: data})
	if n.failTo[to] {
		return mailer.Result{Success: false, Err: errSendFailed.Error()}
	}
	return mailer.Result{Success: true}
}

var errSendFailed = errors.New("send failed")

func (n *fakeNotifier) sentTo(to string) []sentMail {
	var out []sentMail
	for _, m := range n.sent {
		if m.to == to {
			out = append(out, m)
		}
	}
	return out
}

type fakeProber struct {
	result availability.Result
	calls  int
}

func (p *fakeProber) Probe(context.Context, booking.OperatorID, string, int, string) availability.Result {
	p.calls++
	return p.result
}

type publishedEvent struct {
	subject string
	data    any
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.events = append(p.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) subjects() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

func testDirectory() config.Directory {
	return config.Directory{
		Operators: []config.Operator{
			{Name: "Rainbow Helicopters", Email: "fly@rainbow.example"},
			{Name: "Blue Hawaiian Helicopters", Email: "res@bluehawaiian.example"},
		},
		InternalAgent: "agent@makaitours.com",
		Internal:      []string{"hub@makaitours.com", "test-agent@makaitours.com"},
	}
}

type testRig struct {
	pipe      *Pipeline
	store     *fakeStore
	oracle    *fakeOracle
	notifier  *fakeNotifier
	prober    *fakeProber
	publisher *fakePublisher
}

func newTestRig(seed ...booking.Booking) *testRig {
	r := &testRig{
		store:     newFakeStore(seed...),
		oracle:    &fakeOracle{},
		notifier:  &fakeNotifier{failTo: map[string]bool{}},
		prober:    &fakeProber{},
		publisher: &fakePublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.pipe = New(r.store, r.oracle, r.notifier, r.prober, r.publisher, testDirectory(), false, logger)
	return r
}

func seedBooking(status booking.Status, op booking.OperatorID) booking.Booking {
	return booking.Booking{
		ID:             uuid.New(),
		RefCode:        "HTO-K7M2P9",
		Status:         status,
		CustomerName:   "Dana Whitfield",
		CustomerEmail:  "dana@customer.example",
		CustomerPhone:  "+1-808-555-0142",
		PartySize:      3,
		PreferredDate:  "2026-09-14",
		TimeWindow:     "morning",
		TotalWeightLbs: 520,
		OperatorName:   "Rainbow Helicopters",
		Operator:       op,
		Metadata:       booking.Metadata{"island": "oahu"},
	}
}
