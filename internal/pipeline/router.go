package pipeline

import (
	"context"
	"encoding/json"
)

// InboundEmail is the payload the mail gateway delivers for every
// message hitting the bookings inbox, sender unknown.
type InboundEmail struct {
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	BookingID string `json:"booking_id,omitempty"`
	RefCode   string `json:"ref_code,omitempty"`
}

// HandleInboundEmail classifies the sender and forwards to the operator
// or customer handler. The routing itself is deliberately simple - all
// the judgment lives in the handlers.
func (p *Pipeline) HandleInboundEmail(ctx context.Context, msg InboundEmail) Result {
	if _, ok := p.directory.OperatorByAddress(msg.Sender); ok {
		p.logger.Info("inbound email routed to operator handler", "sender", msg.Sender)
		return p.HandleOperatorReply(ctx, OperatorMessage{
			Sender:    msg.Sender,
			Subject:   msg.Subject,
			Body:      msg.Body,
			BookingID: msg.BookingID,
			RefCode:   msg.RefCode,
		})
	}
	if p.directory.IsProtectedAddress(msg.Sender) {
		// Internal addresses forwarding an operator's words take the
		// operator path too - they are never customers.
		p.logger.Info("inbound email from internal address routed to operator handler", "sender", msg.Sender)
		return p.HandleOperatorReply(ctx, OperatorMessage{
			Sender:    msg.Sender,
			Subject:   msg.Subject,
			Body:      msg.Body,
			BookingID: msg.BookingID,
			RefCode:   msg.RefCode,
		})
	}

	p.logger.Info("inbound email routed to customer handler", "sender", msg.Sender)
	return p.HandleCustomerReply(ctx, CustomerMessage{
		Sender:  msg.Sender,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}

// HandleEmailEvent is the NATS adapter for the inbound-email subject.
func (p *Pipeline) HandleEmailEvent(subject string, data []byte) {
	var msg InboundEmail
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error("failed to parse inbound email event", "error", err)
		return
	}
	res := p.HandleInboundEmail(context.Background(), msg)
	if !res.Success {
		p.logger.Warn("inbound email handling unsuccessful", "sender", msg.Sender, "code", res.Code, "error", res.Error)
	}
}
