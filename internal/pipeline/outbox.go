package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/makai-tours/skydesk/internal/mailer"
	"github.com/makai-tours/skydesk/internal/store"
)

// OutboxStore persists notification intents. *store.Store satisfies it.
type OutboxStore interface {
	InsertOutbox(ctx context.Context, bookingRef, recipient, template string, data map[string]any) (uuid.UUID, error)
	MarkOutbox(ctx context.Context, id uuid.UUID, sent bool, errMsg string) error
	FailedOutbox(ctx context.Context, maxAttempts, limit int) ([]store.OutboxEntry, error)
}

// RecordingNotifier wraps a Notifier and writes every send through the
// notification outbox: the intent lands before the attempt, the outcome
// right after. A broken outbox never blocks the send itself.
type RecordingNotifier struct {
	inner  Notifier
	outbox OutboxStore
	logger *slog.Logger
}

func NewRecordingNotifier(inner Notifier, outbox OutboxStore, logger *slog.Logger) *RecordingNotifier {
	return &RecordingNotifier{inner: inner, outbox: outbox, logger: logger}
}

func (n *RecordingNotifier) Send(ctx context.Context, to string, tpl mailer.Template, data mailer.Payload) mailer.Result {
	id, err := n.outbox.InsertOutbox(ctx, data.RefCode, to, string(tpl), payloadMap(data))
	if err != nil {
		n.logger.Error("failed to record outbox intent", "recipient", to, "template", string(tpl), "error", err)
	}

	res := n.inner.Send(ctx, to, tpl, data)

	if id != uuid.Nil {
		if err := n.outbox.MarkOutbox(ctx, id, res.Success, res.Err); err != nil {
			n.logger.Error("failed to mark outbox entry", "id", id.String(), "error", err)
		}
	}
	return res
}

// RunSweep retries failed outbox entries once each. It is driven by a
// ticker in main and returns the number of entries retried.
func (n *RecordingNotifier) RunSweep(ctx context.Context, maxAttempts, limit int) int {
	entries, err := n.outbox.FailedOutbox(ctx, maxAttempts, limit)
	if err != nil {
		n.logger.Error("outbox sweep query failed", "error", err)
		return 0
	}

	for _, e := range entries {
		data := payloadFromMap(e.Data)
		res := n.inner.Send(ctx, e.Recipient, mailer.Template(e.Template), data)
		if err := n.outbox.MarkOutbox(ctx, e.ID, res.Success, res.Err); err != nil {
			n.logger.Error("failed to mark retried outbox entry", "id", e.ID.String(), "error", err)
		}
		n.logger.Info("outbox entry retried",
			"id", e.ID.String(),
			"booking_ref", e.BookingRef,
			"template", e.Template,
			"success", res.Success,
		)
	}
	return len(entries)
}

// StartSweeper runs the retry sweep on an interval until ctx is done.
func (n *RecordingNotifier) StartSweeper(ctx context.Context, interval time.Duration, maxAttempts, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.RunSweep(ctx, maxAttempts, limit)
		}
	}
}

// payloadMap and payloadFromMap round-trip the template payload through
// JSON so the outbox row is self-contained for retries.
func payloadMap(d mailer.Payload) map[string]any {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func payloadFromMap(m map[string]any) mailer.Payload {
	var d mailer.Payload
	raw, err := json.Marshal(m)
	if err != nil {
		return d
	}
	_ = json.Unmarshal(raw, &d)
	return d
}
