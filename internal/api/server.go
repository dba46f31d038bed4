package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/makai-tours/skydesk/internal/booking"
	"github.com/makai-tours/skydesk/internal/pipeline"
	"github.com/makai-tours/skydesk/internal/transcript"
)

// Core is the pipeline surface the HTTP layer exposes. *pipeline.Pipeline
// satisfies it; tests use a fake.
type Core interface {
	HandleInboundEmail(ctx context.Context, msg pipeline.InboundEmail) pipeline.Result
	HandleCall(ctx context.Context, ev transcript.CallEvent) pipeline.Result
	SendAvailabilityFollowUp(ctx context.Context, ref string) pipeline.Result
	ApplyStatusUpdate(ctx context.Context, ref, status string) pipeline.Result
	GetBooking(ctx context.Context, ref string) (booking.Booking, pipeline.Result)
}

type Server struct {
	router   *chi.Mux
	core     Core
	port     int
	apiToken string
	logger   *slog.Logger
}

func NewServer(port int, apiToken string, core Core, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(120 * time.Second))

	s := &Server{
		router:   router,
		core:     core,
		port:     port,
		apiToken: apiToken,
		logger:   logger,
	}

	router.Get("/health", s.health)

	// Webhooks authenticate at the gateway, not here.
	router.Post("/webhooks/email", s.inboundEmail)
	router.Post("/webhooks/call", s.inboundCall)

	router.Route("/api/v1/bookings", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/{ref}", s.getBooking)
		r.Post("/{ref}/follow-up", s.followUp)
		r.Patch("/{ref}/status", s.updateStatus)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests whose Authorization header does
// not carry the configured token. An empty configured token disables
// the check, for local development only.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) inboundEmail(w http.ResponseWriter, r *http.Request) {
	var msg pipeline.InboundEmail
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON payload"})
		return
	}
	writeResult(w, s.core.HandleInboundEmail(r.Context(), msg))
}

func (s *Server) inboundCall(w http.ResponseWriter, r *http.Request) {
	var ev transcript.CallEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON payload"})
		return
	}
	writeResult(w, s.core.HandleCall(r.Context(), ev))
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	b, res := s.core.GetBooking(r.Context(), ref)
	if !res.Success {
		writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusOK, bookingView(b))
}

func (s *Server) followUp(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	writeResult(w, s.core.SendAvailabilityFollowUp(r.Context(), ref))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON payload"})
		return
	}
	writeResult(w, s.core.ApplyStatusUpdate(r.Context(), ref, req.Status))
}

// writeResult maps a pipeline result onto an HTTP status. Handled but
// unsuccessful outcomes, like an aborted follow-up, come back as 200
// with success false so the caller sees the code.
func writeResult(w http.ResponseWriter, res pipeline.Result) {
	status := http.StatusOK
	switch res.Code {
	case pipeline.CodeValidation:
		status = http.StatusBadRequest
	case pipeline.CodeNotFound:
		status = http.StatusNotFound
	case pipeline.CodeAlreadyConfirmed:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// bookingView is the read-endpoint shape; internals like metadata stay
// private to the service.
func bookingView(b booking.Booking) map[string]any {
	return map[string]any{
		"id":                  b.ID.String(),
		"ref_code":            b.RefCode,
		"status":              string(b.Status),
		"customer_name":       b.CustomerName,
		"customer_email":      b.CustomerEmail,
		"customer_phone":      b.CustomerPhone,
		"party_size":          b.PartySize,
		"preferred_date":      b.PreferredDate,
		"time_window":         b.TimeWindow,
		"doors_off":           b.DoorsOff,
		"hotel":               b.Hotel,
		"special_requests":    b.SpecialRequests,
		"total_weight_lbs":    b.TotalWeightLbs,
		"operator":            string(b.Operator),
		"operator_name":       b.OperatorName,
		"confirmation_number": b.ConfirmationNumber,
		"total_amount":        b.TotalAmount,
		"created_at":          b.CreatedAt,
		"updated_at":          b.UpdatedAt,
	}
}
