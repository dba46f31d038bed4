package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/makai-tours/skydesk/internal/anthropic"
)

// Extractor is the natural-language oracle behind every handler. It is
// fallible by contract: callers degrade to safe defaults when a call
// errors, they never fail the inbound trigger on it.
type Extractor struct {
	llm    *anthropic.Client
	logger *slog.Logger
}

func New(llm *anthropic.Client, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// ClassifyReply interprets an operator's reply body. The tagged Kind is
// decided here, once, so handlers branch on a single value.
func (e *Extractor) ClassifyReply(ctx context.Context, body string) (OperatorReply, error) {
	var raw rawReply
	if err := e.complete(ctx, replySystemPrompt, fmt.Sprintf(replyUserPrompt, body), &raw); err != nil {
		return OperatorReply{}, err
	}

	reply := OperatorReply{
		Kind:               decideKind(raw),
		ConfirmationNumber: raw.ConfirmationNumber,
		AvailableDates:     raw.AvailableDates,
		Price:              raw.Price,
		Notes:              raw.Notes,
		Confidence:         raw.Confidence,
	}

	e.logger.Info("operator reply classified",
		"kind", string(reply.Kind),
		"dates", len(reply.AvailableDates),
		"confidence", reply.Confidence,
	)
	return reply, nil
}

// ClassifyInquiry interprets a customer email: spam screen, booking
// intent, and field extraction in one pass.
func (e *Extractor) ClassifyInquiry(ctx context.Context, from, subject, body string) (Inquiry, error) {
	var inq Inquiry
	if err := e.complete(ctx, inquirySystemPrompt, fmt.Sprintf(inquiryUserPrompt, from, subject, body), &inq); err != nil {
		return Inquiry{}, err
	}

	e.logger.Info("customer inquiry classified",
		"spam", inq.IsSpam,
		"booking_request", inq.IsBookingRequest,
		"confidence", inq.Confidence,
	)
	return inq, nil
}

// ExtractCall interprets a finished phone-call transcript.
func (e *Extractor) ExtractCall(ctx context.Context, callerPhone, transcript string) (CallExtraction, error) {
	var ext CallExtraction
	if err := e.complete(ctx, callSystemPrompt, fmt.Sprintf(callUserPrompt, callerPhone, transcript), &ext); err != nil {
		return CallExtraction{}, err
	}

	e.logger.Info("call transcript extracted",
		"spam", ext.IsSpam,
		"booking_request", ext.IsBookingRequest,
		"confidence", ext.Confidence,
	)
	return ext, nil
}

func (e *Extractor) complete(ctx context.Context, system, user string, out any) error {
	raw, err := e.llm.Complete(ctx, system, []anthropic.Message{{Role: "user", Content: user}}, 2048)
	if err != nil {
		return fmt.Errorf("llm classification: %w", err)
	}

	if err := json.Unmarshal([]byte(stripFences(raw)), out); err != nil {
		e.logger.Error("failed to parse classification response", "error", err, "raw", raw)
		return fmt.Errorf("parse classification: %w", err)
	}
	return nil
}

// stripFences tolerates a model wrapping its JSON in markdown fences
// despite the prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
