package intent

// SpamThreshold is the confidence above which a message classified as
// spam is dropped without booking action.
const SpamThreshold = 0.7

// MinCallConfidence is the extraction confidence floor below which a
// call transcript is not treated as a booking request.
const MinCallConfidence = 0.5

// ReplyKind is the closed classification of an operator reply. It is
// decided exactly once, from the oracle's raw flags, so downstream
// branching is a switch instead of a ladder of optional booleans.
type ReplyKind string

const (
	KindConfirmation       ReplyKind = "confirmation"
	KindRejection          ReplyKind = "rejection"
	KindWillHandleDirectly ReplyKind = "will_handle_directly"
	KindProposedTimes      ReplyKind = "proposed_times"
	KindUnclear            ReplyKind = "unclear"
)

// OperatorReply is the structured interpretation of an operator's email.
type OperatorReply struct {
	Kind               ReplyKind
	ConfirmationNumber string
	AvailableDates     []string
	Price              float64
	Notes              string
	Confidence         float64
}

// rawReply mirrors the oracle's JSON schema: independent optional flags
// that decideKind collapses into a ReplyKind.
type rawReply struct {
	IsConfirmation     bool     `json:"is_confirmation"`
	IsRejection        bool     `json:"is_rejection"`
	WillHandleDirectly bool     `json:"will_handle_directly"`
	ConfirmationNumber string   `json:"confirmation_number"`
	AvailableDates     []string `json:"available_dates"`
	Price              float64  `json:"price"`
	Notes              string   `json:"notes"`
	Confidence         float64  `json:"confidence"`
}

// decideKind applies the strict first-match-wins precedence:
// confirmation, then direct handling, then rejection, then proposed
// times when a date list exists, else unclear.
func decideKind(r rawReply) ReplyKind {
	switch {
	case r.IsConfirmation:
		return KindConfirmation
	case r.WillHandleDirectly:
		return KindWillHandleDirectly
	case r.IsRejection:
		return KindRejection
	case len(r.AvailableDates) > 0:
		return KindProposedTimes
	default:
		return KindUnclear
	}
}

// Fields is the booking data the oracle extracts from free text. Zero
// values mean "not mentioned" and preserve whatever a booking already
// holds.
type Fields struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	PartySize       int     `json:"party_size"`
	PreferredDate   string  `json:"preferred_date"`
	TimeWindow      string  `json:"time_window"`
	DoorsOff        bool    `json:"doors_off"`
	Hotel           string  `json:"hotel"`
	SpecialRequests string  `json:"special_requests"`
	TotalWeightLbs  float64 `json:"total_weight_lbs"`
	OperatorHint    string  `json:"operator_hint"`
}

// Merge overlays the non-zero fields of in over f. Chunked calls are
// extracted piecewise and later passes override earlier ones.
func (f Fields) Merge(in Fields) Fields {
	if in.Name != "" {
		f.Name = in.Name
	}
	if in.Email != "" {
		f.Email = in.Email
	}
	if in.Phone != "" {
		f.Phone = in.Phone
	}
	if in.PartySize > 0 {
		f.PartySize = in.PartySize
	}
	if in.PreferredDate != "" {
		f.PreferredDate = in.PreferredDate
	}
	if in.TimeWindow != "" {
		f.TimeWindow = in.TimeWindow
	}
	if in.DoorsOff {
		f.DoorsOff = true
	}
	if in.Hotel != "" {
		f.Hotel = in.Hotel
	}
	if in.SpecialRequests != "" {
		f.SpecialRequests = in.SpecialRequests
	}
	if in.TotalWeightLbs > 0 {
		f.TotalWeightLbs = in.TotalWeightLbs
	}
	if in.OperatorHint != "" {
		f.OperatorHint = in.OperatorHint
	}
	return f
}

// Inquiry is the structured interpretation of a customer email.
type Inquiry struct {
	IsSpam           bool    `json:"is_spam"`
	IsBookingRequest bool    `json:"is_booking_request"`
	Confidence       float64 `json:"confidence"`
	Fields           Fields  `json:"fields"`
	Notes            string  `json:"notes"`
}

// CallExtraction is the structured interpretation of a finished phone
// call transcript.
type CallExtraction struct {
	IsSpam           bool    `json:"is_spam"`
	IsBookingRequest bool    `json:"is_booking_request"`
	Confidence       float64 `json:"confidence"`
	Fields           Fields  `json:"fields"`
	Notes            string  `json:"notes"`
}
