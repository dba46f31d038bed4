package booking

import "fmt"

// Status is the booking lifecycle state. External callers may read these
// values but must never write freeform strings; ParseStatus is the only
// way in from untrusted input.
type Status string

const (
	StatusPending                  Status = "pending"
	StatusCollectingInfo           Status = "collecting_info"
	StatusCheckingAvailability     Status = "checking_availability"
	StatusContactedOperator        Status = "contacted_operator"
	StatusAwaitingOperatorResponse Status = "awaiting_operator_response"
	StatusAwaitingPayment          Status = "awaiting_payment"
	StatusConfirmed                Status = "confirmed"
	StatusCancelled                Status = "cancelled"
	StatusCompleted                Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusCollectingInfo,
	StatusCheckingAvailability,
	StatusContactedOperator,
	StatusAwaitingOperatorResponse,
	StatusAwaitingPayment,
	StatusConfirmed,
	StatusCancelled,
	StatusCompleted,
}

// ParseStatus validates a raw string against the status enumeration.
func ParseStatus(raw string) (Status, error) {
	for _, s := range allStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}

// Terminal reports whether no further transitions are allowed out of s,
// other than confirmed -> completed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. Cancellation is reachable from any non-terminal
// state; completion only from confirmed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	switch next {
	case StatusCancelled:
		return !s.Terminal()
	case StatusCompleted:
		return s == StatusConfirmed
	}
	if s.Terminal() || s == StatusConfirmed {
		return false
	}
	switch next {
	case StatusPending:
		return false
	case StatusCollectingInfo:
		return s == StatusPending
	case StatusCheckingAvailability, StatusContactedOperator,
		StatusAwaitingOperatorResponse, StatusAwaitingPayment, StatusConfirmed:
		return true
	}
	return false
}
