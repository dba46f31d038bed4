package config

import (
	"strings"

	"github.com/makai-tours/skydesk/internal/booking"
)

// Operator is one entry in the operator registry.
type Operator struct {
	Name  string
	Email string
}

// ID resolves the operator's identity from its display name.
func (o Operator) ID() booking.OperatorID {
	return booking.ResolveOperator(o.Name)
}

// Directory is the operator and internal address registry. It is plain
// data injected into every component's constructor, so tests substitute
// fixture directories instead of fighting a global.
type Directory struct {
	Operators []Operator
	// InternalAgent receives "arrange with the operator" notices.
	InternalAgent string
	// Internal lists hub/test-agent addresses in addition to operator
	// and agent addresses; nothing customer-facing may go to any of
	// these.
	Internal []string
}

// OperatorByAddress matches a sender address against the registry by
// exact lowercase comparison.
func (d Directory) OperatorByAddress(addr string) (Operator, bool) {
	lower := strings.ToLower(strings.TrimSpace(addr))
	for _, op := range d.Operators {
		if strings.ToLower(op.Email) == lower {
			return op, true
		}
	}
	return Operator{}, false
}

// OperatorByID returns the registry entry for a resolved identity, used
// to address outbound operator mail. Falls back to the first operator
// when the identity has no registry entry.
func (d Directory) OperatorByID(id booking.OperatorID) (Operator, bool) {
	for _, op := range d.Operators {
		if op.ID() == id {
			return op, true
		}
	}
	return Operator{}, false
}

// PrimaryOperator is the default operator for bookings that name none.
func (d Directory) PrimaryOperator() Operator {
	if len(d.Operators) > 0 {
		return d.Operators[0]
	}
	return Operator{}
}

// IsProtectedAddress reports whether addr belongs to an operator, the
// internal agent, or any hub/test address. Nothing customer-facing may
// be sent to a protected address. Matching is exact and
// case-insensitive.
func (d Directory) IsProtectedAddress(addr string) bool {
	lower := strings.ToLower(strings.TrimSpace(addr))
	if lower == "" {
		return false
	}
	if _, ok := d.OperatorByAddress(lower); ok {
		return true
	}
	if strings.ToLower(d.InternalAgent) == lower {
		return true
	}
	for _, a := range d.Internal {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
