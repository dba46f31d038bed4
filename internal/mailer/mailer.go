// Package mailer sends templated booking email through the
// transactional-mail HTTP API. Sends never return a Go error: every
// attempt produces a Result, and callers decide whether a failure gates
// anything.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Result is the outcome of one send attempt.
type Result struct {
	Success bool
	Err     string
}

type Sender struct {
	apiURL string
	token  string
	from   string
	client *http.Client
	logger *slog.Logger

	// The transport rate-limits; consecutive sends are paced apart by
	// delay rather than queued.
	delay    time.Duration
	mu       sync.Mutex
	lastSend time.Time

	sleep func(time.Duration) // swapped out in tests
}

func NewSender(apiURL, token, from string, delay time.Duration, logger *slog.Logger) *Sender {
	return &Sender{
		apiURL: apiURL,
		token:  token,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
		delay:  delay,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Send composes the template and posts it to the mail API.
func (s *Sender) Send(ctx context.Context, to string, tpl Template, data Payload) Result {
	subject, body, err := Compose(tpl, data)
	if err != nil {
		s.logger.Error("template composition failed", "template", string(tpl), "error", err)
		return Result{Err: err.Error()}
	}

	s.pace()

	payload, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      to,
		"subject": subject,
		"text":    body,
	})
	if err != nil {
		return Result{Err: fmt.Sprintf("marshal mail payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("mail send failed", "to", to, "template", string(tpl), "error", err)
		return Result{Err: fmt.Sprintf("mail post: %v", err)}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("mail api rejected send",
			"to", to,
			"template", string(tpl),
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return Result{Err: fmt.Sprintf("mail api status %d", resp.StatusCode)}
	}

	s.logger.Info("mail sent", "to", to, "template", string(tpl), "subject", subject)
	return Result{Success: true}
}

// pace spaces consecutive sends at least delay apart.
func (s *Sender) pace() {
	if s.delay <= 0 {
		return
	}
	s.mu.Lock()
	wait := s.delay - time.Since(s.lastSend)
	s.lastSend = time.Now()
	if wait > 0 {
		s.lastSend = s.lastSend.Add(wait)
	}
	s.mu.Unlock()

	if wait > 0 {
		s.sleep(wait)
	}
}
