package booking

import (
	"crypto/rand"
	"regexp"
)

// Reference codes are the public booking identifier: "HTO-" followed by
// exactly six characters from [A-Z0-9]. The format is a published
// contract: customers quote these codes in emails and phone calls.
const refCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const refCodeLen = 6

// RefCodePattern matches a reference code embedded anywhere in free
// text, e.g. an email subject line "Re: Booking HTO-7KQ2MN".
var RefCodePattern = regexp.MustCompile(`HTO-[A-Z0-9]{6}`)

var refCodeExact = regexp.MustCompile(`^HTO-[A-Z0-9]{6}$`)

// NewRefCode generates a fresh reference code. Uniqueness is enforced by
// the store; callers retry on collision.
func NewRefCode() string {
	buf := make([]byte, refCodeLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("refcode: " + err.Error())
	}
	out := make([]byte, refCodeLen)
	for i, b := range buf {
		out[i] = refCodeAlphabet[int(b)%len(refCodeAlphabet)]
	}
	return "HTO-" + string(out)
}

// ValidRefCode reports whether s is exactly a reference code.
func ValidRefCode(s string) bool {
	return refCodeExact.MatchString(s)
}

// ExtractRefCode returns the first reference code found in text, or ""
// when none is present.
func ExtractRefCode(text string) string {
	return RefCodePattern.FindString(text)
}
