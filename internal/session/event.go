package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// EventKind identifies what happened at an instant of the session.
type EventKind string

const (
	EventOpen      EventKind = "OPEN"
	EventActivity  EventKind = "ACTIVITY"
	EventSwitchTab EventKind = "SWITCH_TAB"
	EventAIAsk     EventKind = "AI_ASK"
	EventAIReply   EventKind = "AI_REPLY"
	EventSubmit    EventKind = "SUBMIT"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventOpen, EventActivity, EventSwitchTab, EventAIAsk, EventAIReply, EventSubmit:
		return true
	}
	return false
}

// ParseEventKind accepts the wire form ("ACTIVITY") and the CLI form ("activity", "switch-tab").
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// Intent classifies what a chat turn asked the model for.
type Intent string

const (
	IntentConcept    Intent = "CONCEPT"
	IntentMethod     Intent = "METHOD"
	IntentGeneration Intent = "GENERATION"
)

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentConcept, IntentMethod, IntentGeneration:
		return true
	}
	return false
}

// UnmarshalText rejects intents outside the closed set.
func (i *Intent) UnmarshalText(b []byte) error {
	v := Intent(b)
	if !v.Valid() {
		return fmt.Errorf("unknown intent %q", string(b))
	}
	*i = v
	return nil
}

// generationThreshold is the length, in runes, above which a request is
// treated as asking the model to produce content.
const generationThreshold = 300

var methodMarkers = []string{"如何", "解释", "how", "explain"}

// ClassifyIntent labels a chat text by length and wording.
func ClassifyIntent(text string) Intent {
	if utf8.RuneCountInString(text) > generationThreshold {
		return IntentGeneration
	}
	lower := strings.ToLower(text)
	for _, m := range methodMarkers {
		if strings.Contains(lower, m) {
			return IntentMethod
		}
	}
	return IntentConcept
}

// Metadata is the read-only detail attached to some events.
type Metadata struct {
	// Tab is the destination of a SWITCH_TAB event.
	Tab string `json:"tab,omitempty"`
	// TextLength is the rune count of the chat text behind AI_ASK/AI_REPLY.
	TextLength int    `json:"text_length,omitempty"`
	Intent     Intent `json:"intent,omitempty"`
}

// Event is one entry of the append-only activity log.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
	Meta *Metadata `json:"meta,omitempty"`
}

// MarshalJSON writes the time as Unix milliseconds, the unit the scoring hash is seeded with.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Kind: e.Kind, TimeMs: e.Time.UnixMilli(), Meta: e.Meta})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", w.Kind)
	}
	e.Kind = w.Kind
	e.Time = time.UnixMilli(w.TimeMs).UTC()
	e.Meta = w.Meta
	return nil
}

type wireEvent struct {
	Kind   EventKind `json:"kind"`
	TimeMs int64     `json:"time_ms"`
	Meta   *Metadata `json:"meta,omitempty"`
}
