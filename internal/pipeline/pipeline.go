// Package pipeline is the booking core: it routes and interprets
// inbound communications, drives the booking status machine, and
// decides which notifications fire. Handlers are stateless; every
// inbound trigger gets a Result back, never a panic or a hard failure
// from a degraded collaborator.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/makai-tours/skydesk/internal/availability"
	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/config"
	"github.com/makai-tours/skydesk/internal/intent"
	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// Store is the booking persistence contract consumed by the pipeline.
// *store.Store satisfies it; tests use an in-memory fake.
type Store interface {
	CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error)
	BookingByID(ctx context.Context, id uuid.UUID) (booking.Booking, error)
	BookingByRefCode(ctx context.Context, refCode string) (booking.Booking, error)
	LatestBookingByEmail(ctx context.Context, email string) (booking.Booking, error)
	LatestBookingByOperator(ctx context.Context, op booking.OperatorID) (booking.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, p store.Patch) error
}

// Oracle is the natural-language classification contract. A failed call
// is degraded by the handler, never surfaced to the inbound trigger.
type Oracle interface {
	ClassifyReply(ctx context.Context, body string) (intent.OperatorReply, error)
	ClassifyInquiry(ctx context.Context, from, subject, body string) (intent.Inquiry, error)
	ExtractCall(ctx context.Context, callerPhone, transcript string) (intent.CallExtraction, error)
}

// Notifier sends one templated email and always reports a result.
type Notifier interface {
	Send(ctx context.Context, to string, tpl mailer.Template, data mailer.Payload) mailer.Result
}

// Prober checks live operator availability; failures arrive normalized.
type Prober interface {
	Probe(ctx context.Context, op booking.OperatorID, date string, partySize int, tourHint string) availability.Result
}

// Publisher emits lifecycle events. May be nil when the event fabric is
// not configured.
type Publisher interface {
	Publish(subject string, data any) error
}

// Result codes surfaced to the intake layer for response mapping.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeAlreadyConfirmed = "already_confirmed"
	CodeSafetyViolation  = "safety_violation"
)

// Result is what every handler returns to its caller.
type Result struct {
	Success bool           `json:"success"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func failure(code, msg string) Result {
	return Result{Code: code, Error: msg}
}

// Pipeline bundles the handlers with their collaborators. The operator
// directory is plain injected configuration so tests swap in fixtures.
type Pipeline struct {
	store     Store
	oracle    Oracle
	notifier  Notifier
	prober    Prober
	publisher Publisher
	directory config.Directory
	logger    *slog.Logger
	validate  *validator.Validate

	// spamAutoReply gates the deflection reply to spam senders.
	spamAutoReply bool
}

func New(s Store, o Oracle, n Notifier, p Prober, pub Publisher, dir config.Directory, spamAutoReply bool, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:         s,
		oracle:        o,
		notifier:      n,
		prober:        p,
		publisher:     pub,
		directory:     dir,
		logger:        logger,
		validate:      validator.New(),
		spamAutoReply: spamAutoReply,
	}
}

// publish is nil-safe and logs instead of failing - lifecycle events are
// best-effort.
func (p *Pipeline) publish(subject string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		p.logger.Error("event publish failed", "subject", subject, "error", err)
	}
}

// updateFresh applies build's patch as a compare-and-swap against the
// booking it was computed from. A stale write refetches once and
// rebuilds, so two near-simultaneous triggers against the same booking
// converge instead of bouncing one back to the caller.
func (p *Pipeline) updateFresh(ctx context.Context, b booking.Booking, build func(booking.Booking) store.Patch) error {
	patch := build(b)
	patch.ExpectedUpdatedAt = &b.UpdatedAt
	err := p.store.UpdateBooking(ctx, b.ID, patch)
	if !errors.Is(err, store.ErrStale) {
		return err
	}

	p.logger.Warn("booking changed concurrently, retrying update", "ref_code", b.RefCode)
	fresh, err := p.store.BookingByID(ctx, b.ID)
	if err != nil {
		return err
	}
	patch = build(fresh)
	patch.ExpectedUpdatedAt = &fresh.UpdatedAt
	return p.store.UpdateBooking(ctx, fresh.ID, patch)
}

// payloadFor builds the template payload shared by every branch.
func payloadFor(b booking.Booking) mailer.Payload {
	island, _ := b.Metadata["island"].(string)
	return mailer.Payload{
		RefCode:            b.RefCode,
		CustomerName:       b.CustomerName,
		PartySize:          b.PartySize,
		PreferredDate:      b.PreferredDate,
		TimeWindow:         b.TimeWindow,
		DoorsOff:           b.DoorsOff,
		Hotel:              b.Hotel,
		SpecialRequests:    b.SpecialRequests,
		TotalWeightLbs:     b.TotalWeightLbs,
		OperatorName:       b.OperatorName,
		ConfirmationNumber: b.ConfirmationNumber,
		TotalAmount:        b.TotalAmount,
		Island:             island,
	}
}
