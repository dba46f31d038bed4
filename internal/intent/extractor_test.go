package intent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/makai-tours/skydesk/internal/anthropic"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oracleServer(t *testing.T, payload any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respJSON, _ := json.Marshal(payload)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": string(respJSON)}},
			"stop_reason": "end_turn",
		})
	}))
}

func newExtractor(url string) *Extractor {
	llm := anthropic.NewClient("test-key", "test-model")
	llm.SetTestTransport(url)
	return New(llm, discardLogger())
}

func TestClassifyReply_Confirmation(t *testing.T) {
	server := oracleServer(t, rawReply{
		IsConfirmation:     true,
		ConfirmationNumber: "12345",
		AvailableDates:     []string{"2026-01-30"},
		Price:              716,
		Confidence:         0.95,
	})
	defer server.Close()

	reply, err := newExtractor(server.URL).ClassifyReply(context.Background(), "Confirmed! Booking #12345.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Confirmation wins even with a date list present.
	if reply.Kind != KindConfirmation {
		t.Errorf("expected confirmation, got %q", reply.Kind)
	}
	if reply.ConfirmationNumber != "12345" {
		t.Errorf("expected confirmation number 12345, got %q", reply.ConfirmationNumber)
	}
	if reply.Price != 716 {
		t.Errorf("expected price 716, got %v", reply.Price)
	}
}

func TestClassifyReply_ProposedTimesOnly(t *testing.T) {
	server := oracleServer(t, rawReply{
		AvailableDates: []string{"2026-02-01", "2026-02-02"},
		Confidence:     0.8,
	})
	defer server.Close()

	reply, err := newExtractor(server.URL).ClassifyReply(context.Background(), "Available: Feb 1, Feb 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Kind != KindProposedTimes {
		t.Errorf("expected proposed_times, got %q", reply.Kind)
	}
	if len(reply.AvailableDates) != 2 {
		t.Errorf("expected 2 dates, got %d", len(reply.AvailableDates))
	}
}

func TestClassifyReply_Unclear(t *testing.T) {
	server := oracleServer(t, rawReply{Notes: "What altitude does the customer prefer?", Confidence: 0.4})
	defer server.Close()

	reply, err := newExtractor(server.URL).ClassifyReply(context.Background(), "What altitude?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Kind != KindUnclear {
		t.Errorf("expected unclear, got %q", reply.Kind)
	}
	if reply.Notes == "" {
		t.Error("expected notes to carry the operator's question")
	}
}

func TestDecideKind_Precedence(t *testing.T) {
	tests := []struct {
		name string
		raw  rawReply
		want ReplyKind
	}{
		{"confirmation beats everything", rawReply{IsConfirmation: true, IsRejection: true, WillHandleDirectly: true, AvailableDates: []string{"d"}}, KindConfirmation},
		{"direct handling beats rejection", rawReply{IsRejection: true, WillHandleDirectly: true}, KindWillHandleDirectly},
		{"rejection beats proposed times", rawReply{IsRejection: true, AvailableDates: []string{"d"}}, KindRejection},
		{"dates alone are proposed times", rawReply{AvailableDates: []string{"d"}}, KindProposedTimes},
		{"nothing set is unclear", rawReply{}, KindUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decideKind(tt.raw); got != tt.want {
				t.Errorf("decideKind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyInquiry(t *testing.T) {
	server := oracleServer(t, Inquiry{
		IsBookingRequest: true,
		Confidence:       0.9,
		Fields: Fields{
			Name:          "Dana K",
			Email:         "dana@example.com",
			PartySize:     2,
			PreferredDate: "2026-02-14",
			OperatorHint:  "Rainbow",
		},
	})
	defer server.Close()

	inq, err := newExtractor(server.URL).ClassifyInquiry(context.Background(), "dana@example.com", "Tour?", "Hi, two of us on Valentine's day, Rainbow please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inq.IsSpam {
		t.Error("should not be spam")
	}
	if !inq.IsBookingRequest {
		t.Error("expected booking request")
	}
	if inq.Fields.PartySize != 2 {
		t.Errorf("expected party size 2, got %d", inq.Fields.PartySize)
	}
}

func TestExtractCall(t *testing.T) {
	server := oracleServer(t, CallExtraction{
		IsBookingRequest: true,
		Confidence:       0.85,
		Fields:           Fields{Name: "Sam", Email: "sam@example.com", TotalWeightLbs: 320},
	})
	defer server.Close()

	ext, err := newExtractor(server.URL).ExtractCall(context.Background(), "+18085550100", "agent: ...\ncaller: ...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Fields.TotalWeightLbs != 320 {
		t.Errorf("expected weight 320, got %v", ext.Fields.TotalWeightLbs)
	}
}

func TestClassify_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "not json at all"}},
		})
	}))
	defer server.Close()

	if _, err := newExtractor(server.URL).ClassifyReply(context.Background(), "body"); err == nil {
		t.Fatal("expected error for unparseable oracle output")
	}
}

func TestStripFences(t *testing.T) {
	fenced := "```json\n{\"is_spam\": false}\n```"
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFences(fenced)), &out); err != nil {
		t.Fatalf("fenced JSON should parse after stripping: %v", err)
	}
}

func TestFieldsMerge_LaterPassWins(t *testing.T) {
	first := Fields{Name: "Mele Kahale", Email: "mele@customer.example", PartySize: 4}
	second := Fields{PartySize: 2, PreferredDate: "2026-09-21", TotalWeightLbs: 320, DoorsOff: true}

	got := first.Merge(second)
	if got.Name != "Mele Kahale" || got.Email != "mele@customer.example" {
		t.Errorf("absent fields must be preserved: %+v", got)
	}
	if got.PartySize != 2 {
		t.Errorf("party size = %d, want the later value", got.PartySize)
	}
	if got.PreferredDate != "2026-09-21" || got.TotalWeightLbs != 320 || !got.DoorsOff {
		t.Errorf("new fields must land: %+v", got)
	}
	if merged := got.Merge(Fields{}); merged != got {
		t.Errorf("zero overlay must be a no-op: %+v", merged)
	}
}
