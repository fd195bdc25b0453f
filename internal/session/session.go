// Package session records the activity log of one assignment attempt and
// owns the write-once submission lock that freezes its score.
//
// A Session is an explicit value owned by the caller. Appends from several
// goroutines (activity tracker, chat assistant, CLI) are serialized; scoring
// reads a Snapshot and never the live log.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadySubmitted is returned by Submit once the session is locked.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrLogFull is returned when an append would exceed the configured event cap.
	ErrLogFull = errors.New("session event log is full")
)

// DefaultMaxEvents bounds the activity log of a single session.
const DefaultMaxEvents = 100_000

// Session is the live, append-only record of one attempt.
type Session struct {
	mu sync.RWMutex

	id         string
	startTime  time.Time
	submitTime *time.Time
	fileName   string
	events     []Event
	maxEvents  int
}

// New opens a session at start and records its OPEN event.
func New(start time.Time) *Session {
	return NewWithID(uuid.NewString(), start)
}

// NewWithID opens a session with a caller-chosen identifier.
func NewWithID(id string, start time.Time) *Session {
	start = normalize(start)
	return &Session{
		id:        id,
		startTime: start,
		events:    []Event{{Kind: EventOpen, Time: start}},
		maxEvents: DefaultMaxEvents,
	}
}

// Restore rebuilds a session from persisted state without adding events.
func Restore(id string, start time.Time, submit *time.Time, fileName string, events []Event) *Session {
	s := &Session{
		id:        id,
		startTime: normalize(start),
		fileName:  fileName,
		events:    make([]Event, len(events)),
		maxEvents: DefaultMaxEvents,
	}
	for i, e := range events {
		e.Time = normalize(e.Time)
		s.events[i] = e
	}
	if submit != nil {
		t := normalize(*submit)
		s.submitTime = &t
	}
	return s
}

// SetMaxEvents changes the event cap. Values below 1 restore the default.
func (s *Session) SetMaxEvents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = DefaultMaxEvents
	}
	s.maxEvents = n
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartTime returns when the session was opened.
func (s *Session) StartTime() time.Time { return s.startTime }

// FileName returns the name of the submitted file, if any.
func (s *Session) FileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileName
}

// SetFileName records the name of the file the student is working on.
func (s *Session) SetFileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = name
}

// RecordEvent appends an event. Events arriving after submission are kept;
// scoring ignores them because they fall past the horizon.
func (s *Session) RecordEvent(kind EventKind, t time.Time, meta *Metadata) error {
	if !kind.Valid() {
		return fmt.Errorf("record event: unknown kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(Event{Kind: kind, Time: normalize(t), Meta: meta})
}

func (s *Session) appendLocked(e Event) error {
	if len(s.events) >= s.maxEvents {
		return ErrLogFull
	}
	s.events = append(s.events, e)
	return nil
}

// Submit locks the session at t and appends the SUBMIT event.
// A second call returns ErrAlreadySubmitted and leaves the lock untouched.
func (s *Session) Submit(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitTime != nil {
		return ErrAlreadySubmitted
	}
	t = normalize(t)
	// The SUBMIT event is bookkeeping; the lock holds even when the log is full.
	_ = s.appendLocked(Event{Kind: EventSubmit, Time: t})
	s.submitTime = &t
	return nil
}

// Locked reports whether Submit has succeeded.
func (s *Session) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitTime != nil
}

// SubmitTime returns the lock instant and whether the session is locked.
func (s *Session) SubmitTime() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.submitTime == nil {
		return time.Time{}, false
	}
	return *s.submitTime, true
}

// Horizon is the instant past which nothing counts: the submit time once
// locked, otherwise now. It is derived on every call.
func (s *Session) Horizon(now time.Time) time.Time {
	if t, ok := s.SubmitTime(); ok {
		return t
	}
	return normalize(now)
}

// LastEventTime returns the time of the most recently appended event.
func (s *Session) LastEventTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return s.startTime
	}
	return s.events[len(s.events)-1].Time
}

// Len returns the number of recorded events.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// AuditID identifies a locked session in reports: "HASH-" followed by the
// submit time in upper-case base 36 milliseconds. Empty until locked.
func (s *Session) AuditID() string {
	t, ok := s.SubmitTime()
	if !ok {
		return ""
	}
	return "HASH-" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}

// Snapshot returns an immutable copy of the session for scoring.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:        s.id,
		StartTime: s.startTime,
		FileName:  s.fileName,
		Events:    make([]Event, len(s.events)),
	}
	copy(snap.Events, s.events)
	if s.submitTime != nil {
		t := *s.submitTime
		snap.SubmitTime = &t
	}
	return snap
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"-"`
	SubmitTime *time.Time `json:"-"`
	FileName   string     `json:"file_name,omitempty"`
	Events     []Event    `json:"events"`
}

// Horizon mirrors Session.Horizon for a snapshot.
func (s Snapshot) Horizon(now time.Time) time.Time {
	if s.SubmitTime != nil {
		return *s.SubmitTime
	}
	return normalize(now)
}

// Locked reports whether the snapshot was taken after submission.
func (s Snapshot) Locked() bool { return s.SubmitTime != nil }

type wireSnapshot struct {
	ID           string  `json:"id"`
	StartTimeMs  int64   `json:"start_time_ms"`
	SubmitTimeMs *int64  `json:"submit_time_ms,omitempty"`
	FileName     string  `json:"file_name,omitempty"`
	Events       []Event `json:"events"`
}

// MarshalJSON writes instants as Unix milliseconds.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		ID:          s.ID,
		StartTimeMs: s.StartTime.UnixMilli(),
		FileName:    s.FileName,
		Events:      s.Events,
	}
	if w.Events == nil {
		w.Events = []Event{}
	}
	if s.SubmitTime != nil {
		ms := s.SubmitTime.UnixMilli()
		w.SubmitTimeMs = &ms
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.StartTime = time.UnixMilli(w.StartTimeMs).UTC()
	s.FileName = w.FileName
	s.Events = w.Events
	s.SubmitTime = nil
	if w.SubmitTimeMs != nil {
		t := time.UnixMilli(*w.SubmitTimeMs).UTC()
		s.SubmitTime = &t
	}
	return nil
}

// FromSnapshot rebuilds a live session from a snapshot.
func FromSnapshot(snap Snapshot) *Session {
	return Restore(snap.ID, snap.StartTime, snap.SubmitTime, snap.FileName, snap.Events)
}

// normalize truncates to millisecond precision in UTC, the resolution that
// survives persistence and seeds the scoring hash.
func normalize(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
