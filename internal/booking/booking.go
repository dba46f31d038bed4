package booking

import (
	"time"

	"github.com/google/uuid"
)

// MinTotalWeightLbs is the hard floor on a party's combined weight.
// Bookings below it are never persisted, on any intake path.
const MinTotalWeightLbs = 100

// PlaceholderWeightLbs marks a booking created from an email inquiry in
// collecting_info, before the party's real combined weight is known. It
// is deliberately below the floor so nothing downstream mistakes it for
// a confirmed measurement.
const PlaceholderWeightLbs = 0

// Metadata is the open key-value bag attached to every booking:
// availability results, operator notes, send timestamps, conversation
// logs. Updates must go through MergeMetadata so unrelated keys survive.
type Metadata map[string]any

// Booking is the central entity driven through the status lifecycle.
type Booking struct {
	ID                 uuid.UUID
	RefCode            string
	Status             Status
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	PartySize          int
	PreferredDate      string
	TimeWindow         string
	DoorsOff           bool
	Hotel              string
	SpecialRequests    string
	TotalWeightLbs     float64
	OperatorName       string
	Operator           OperatorID
	ConfirmationNumber string
	TotalAmount        float64
	Metadata           Metadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MergeMetadata returns a new map holding every key of existing with
// updates layered on top. Neither input is mutated. Passing the same
// updates twice is a no-op for unrelated keys.
func MergeMetadata(existing, updates Metadata) Metadata {
	merged := make(Metadata, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// AppendConversation layers one message onto the running conversation
// log inside metadata without touching prior entries or other keys.
func AppendConversation(existing Metadata, message string, at time.Time) Metadata {
	var log []any
	if prior, ok := existing["conversation_log"].([]any); ok {
		log = append(log, prior...)
	}
	log = append(log, map[string]any{
		"message":     message,
		"received_at": at.UTC().Format(time.RFC3339),
	})
	return MergeMetadata(existing, Metadata{"conversation_log": log})
}

// ContactFields is the merge-friendly subset of customer data extracted
// from later messages. Non-empty values overwrite, empty values preserve
// what the booking already holds.
type ContactFields struct {
	Name          string
	Email         string
	Phone         string
	PartySize     int
	PreferredDate string
	TimeWindow    string
	Hotel         string
	SpecialReqs   string
	TotalWeight   float64
}

// ApplyContact merges extracted fields into b per the overwrite policy.
// It reports whether anything actually changed.
func (b *Booking) ApplyContact(f ContactFields) bool {
	changed := false
	setStr := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	setStr(&b.CustomerName, f.Name)
	setStr(&b.CustomerEmail, f.Email)
	setStr(&b.CustomerPhone, f.Phone)
	setStr(&b.PreferredDate, f.PreferredDate)
	setStr(&b.TimeWindow, f.TimeWindow)
	setStr(&b.Hotel, f.Hotel)
	setStr(&b.SpecialRequests, f.SpecialReqs)
	if f.PartySize > 0 && b.PartySize != f.PartySize {
		b.PartySize = f.PartySize
		changed = true
	}
	if f.TotalWeight > 0 && b.TotalWeightLbs != f.TotalWeight {
		b.TotalWeightLbs = f.TotalWeight
		changed = true
	}
	return changed
}
