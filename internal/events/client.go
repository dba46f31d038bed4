// Package events is the NATS fabric between skydesk and the intake
// gateways: the mail gateway and call platform publish inbound payloads
// here, and skydesk publishes booking lifecycle events for dashboards
// and downstream automations.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Inbound subjects consumed by the pipeline.
const (
	SubjectInboundEmail = "skydesk.intake.email"
	SubjectInboundCall  = "skydesk.intake.call"
)

// Lifecycle subjects published by the pipeline.
const (
	SubjectBookingCreated   = "skydesk.booking.created"
	SubjectBookingConfirmed = "skydesk.booking.confirmed"
	SubjectBookingCancelled = "skydesk.booking.cancelled"
	SubjectSafetyAlert      = "skydesk.alert.safety"
)

// BookingEvent is the lifecycle payload.
type BookingEvent struct {
	BookingID string `json:"booking_id"`
	RefCode   string `json:"ref_code"`
	Status    string `json:"status"`
	Operator  string `json:"operator"`
	At        string `json:"at"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
