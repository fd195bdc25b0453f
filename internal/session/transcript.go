package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// Role tells who authored a chat exchange.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleModel   Role = "MODEL"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleStudent || r == RoleModel }

// ChatExchange is one completed chat turn. Only MODEL turns open influence windows.
type ChatExchange struct {
	Role   Role
	Text   string
	Time   time.Time
	Intent Intent
}

type wireExchange struct {
	Role   Role   `json:"role"`
	Text   string `json:"text"`
	TimeMs int64  `json:"time_ms"`
	Intent Intent `json:"intent,omitempty"`
}

func (c ChatExchange) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireExchange{Role: c.Role, Text: c.Text, TimeMs: c.Time.UnixMilli(), Intent: c.Intent})
}

func (c *ChatExchange) UnmarshalJSON(b []byte) error {
	var w wireExchange
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if !w.Role.Valid() {
		return fmt.Errorf("unknown role %q", w.Role)
	}
	*c = ChatExchange{Role: w.Role, Text: w.Text, Time: time.UnixMilli(w.TimeMs).UTC(), Intent: w.Intent}
	return nil
}

// Transcript is the append-only chat log of a session.
type Transcript struct {
	mu        sync.RWMutex
	exchanges []ChatExchange
}

// NewTranscript returns a transcript seeded with already recorded exchanges.
func NewTranscript(exchanges ...ChatExchange) *Transcript {
	tr := &Transcript{exchanges: make([]ChatExchange, 0, len(exchanges))}
	for _, c := range exchanges {
		c.Time = normalize(c.Time)
		tr.exchanges = append(tr.exchanges, c)
	}
	return tr
}

// Append records a completed turn and returns it as stored.
func (tr *Transcript) Append(role Role, text string, t time.Time) (ChatExchange, error) {
	if !role.Valid() {
		return ChatExchange{}, fmt.Errorf("append exchange: unknown role %q", role)
	}
	c := ChatExchange{Role: role, Text: text, Time: normalize(t), Intent: ClassifyIntent(text)}
	tr.mu.Lock()
	tr.exchanges = append(tr.exchanges, c)
	tr.mu.Unlock()
	return c, nil
}

// Exchanges returns a copy of the recorded turns in insertion order.
func (tr *Transcript) Exchanges() []ChatExchange {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]ChatExchange, len(tr.exchanges))
	copy(out, tr.exchanges)
	return out
}

// Len returns the number of recorded turns.
func (tr *Transcript) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.exchanges)
}

// ExchangeEvent returns the log event that mirrors a recorded chat turn:
// AI_ASK for student turns and AI_REPLY for model turns.
func ExchangeEvent(c ChatExchange) Event {
	kind := EventAIAsk
	if c.Role == RoleModel {
		kind = EventAIReply
	}
	return Event{
		Kind: kind,
		Time: c.Time,
		Meta: &Metadata{TextLength: utf8.RuneCountInString(c.Text), Intent: c.Intent},
	}
}

// RecordExchange appends a completed chat turn to tr and the matching
// AI_ASK (student) or AI_REPLY (model) event to the session log.
func (s *Session) RecordExchange(tr *Transcript, role Role, text string, t time.Time) (ChatExchange, error) {
	c, err := tr.Append(role, text, t)
	if err != nil {
		return ChatExchange{}, err
	}
	e := ExchangeEvent(c)
	if err := s.RecordEvent(e.Kind, e.Time, e.Meta); err != nil {
		return c, fmt.Errorf("record %s event: %w", e.Kind, err)
	}
	return c, nil
}
