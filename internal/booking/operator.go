package booking

import "strings"

// OperatorID is the resolved operator identity. The free-text operator
// name is kept on the booking for display, but branch behavior keys off
// this value, resolved once at creation or when an operator reply is
// matched to a directory entry.
type OperatorID string

const (
	OperatorRainbow      OperatorID = "rainbow"
	OperatorBlueHawaiian OperatorID = "blue_hawaiian"
	OperatorOther        OperatorID = "other"
)

// ResolveOperator infers an operator identity from free text (an
// operator name, or a transcript mentioning one). Names matching neither
// known operator resolve to Other and take the generic path.
func ResolveOperator(text string) OperatorID {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "rainbow"):
		return OperatorRainbow
	case strings.Contains(lower, "blue hawaiian"), strings.Contains(lower, "blue hawaii"):
		return OperatorBlueHawaiian
	default:
		return OperatorOther
	}
}

// Rainbow reports whether the operator gets the Rainbow-specific
// handling (holding messages plus manual arrangement by the internal
// agent instead of live time slots).
func (o OperatorID) Rainbow() bool {
	return o == OperatorRainbow
}
