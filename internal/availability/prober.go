// Package availability wraps the browser-automation probe service that
// scrapes operator booking widgets for live tour slots.
package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/makai-tours/skydesk/internal/booking"
)

// Slot is one scraped departure. Price is per passenger; zero means the
// widget showed no per-slot price.
type Slot struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// Result is the normalized probe outcome. Err is informational; the
// orchestrator proceeds to the notification step either way.
type Result struct {
	Available bool    `json:"available"`
	Slots     []Slot  `json:"slots"`
	TourPrice float64 `json:"tour_price"` // overall per-party price when slots carry none
	Err       string  `json:"error"`
	Source    string  `json:"source"` // "scrape" or "manual"
}

type Prober struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewProber(baseURL string, logger *slog.Logger) *Prober {
	return &Prober{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
	}
}

// Probe asks the probe service for live availability. It never returns
// a Go error: every failure mode collapses to an unavailable/manual
// result so the caller always reaches its notification step.
func (p *Prober) Probe(ctx context.Context, op booking.OperatorID, date string, partySize int, tourHint string) Result {
	payload, err := json.Marshal(map[string]any{
		"operator":   string(op),
		"date":       date,
		"party_size": partySize,
		"tour_hint":  tourHint,
	})
	if err != nil {
		return manualResult(fmt.Sprintf("marshal probe request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/probe", bytes.NewReader(payload))
	if err != nil {
		return manualResult(fmt.Sprintf("create probe request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("availability probe failed", "operator", string(op), "error", err)
		return manualResult(fmt.Sprintf("probe call: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return manualResult(fmt.Sprintf("read probe response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("availability probe rejected", "status", resp.StatusCode, "body", string(body))
		return manualResult(fmt.Sprintf("probe status %d", resp.StatusCode))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return manualResult(fmt.Sprintf("parse probe response: %v", err))
	}
	if result.Source == "" {
		result.Source = "scrape"
	}

	p.logger.Info("availability probe complete",
		"operator", string(op),
		"available", result.Available,
		"slots", len(result.Slots),
	)
	return result
}

func manualResult(errMsg string) Result {
	return Result{Available: false, Err: errMsg, Source: "manual"}
}
