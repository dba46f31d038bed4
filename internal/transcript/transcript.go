// Package transcript turns call-platform payloads into prompt-ready
// text for the intent oracle.
package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Turn is a single utterance in a call.
type Turn struct {
	Role      string    `json:"role"` // "agent" or "caller"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CallEvent is the payload the call platform delivers. Either a raw
// transcript string or a structured turn list; partial events carry an
// in-progress status.
type CallEvent struct {
	CallID      string `json:"call_id"`
	CallerPhone string `json:"caller_phone"`
	Status      string `json:"status"` // "in_progress", "ended", "completed", ""
	Transcript  string `json:"transcript"`
	Turns       []Turn `json:"turns"`
}

// Ended reports whether the call is over and safe to interpret. Explicit
// end statuses count, as does a non-empty transcript delivered with no
// status (an after-the-fact export).
func (e CallEvent) Ended() bool {
	switch e.Status {
	case "ended", "completed", "finished":
		return true
	case "in_progress", "ringing", "answered":
		return false
	}
	return e.Transcript != "" || len(e.Turns) > 0
}

// Text returns the transcript as labeled prose. Structured turns win
// over the raw string when both are present.
func (e CallEvent) Text() string {
	if len(e.Turns) > 0 {
		return Flatten(e.Turns)
	}
	return strings.TrimSpace(e.Transcript)
}

// Flatten renders turns as "role: text" lines, skipping empty turns.
func Flatten(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		role := t.Role
		if role == "" {
			role = "caller"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, text)
	}
	return strings.TrimSpace(sb.String())
}
