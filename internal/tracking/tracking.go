// Package tracking turns raw activity signals into session events.
//
// A Source delivers signals (file writes, tab switches) to a handler while
// attached. The Tracker owns the idle policy: an activity signal is recorded
// only when enough time has passed since the last recorded event, so a
// burst of keystrokes becomes one ACTIVITY event instead of thousands.
package tracking

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"aiaudit/internal/metrics"
	"aiaudit/internal/session"
)

// DefaultIdleInterval is the minimum spacing between recorded ACTIVITY events.
const DefaultIdleInterval = 10 * time.Second

var (
	// ErrAlreadyRunning is returned by Start on a tracker that is attached.
	ErrAlreadyRunning = errors.New("tracker already running")
	// ErrNotRunning is returned by Stop on a tracker that is not attached.
	ErrNotRunning = errors.New("tracker not running")
)

// SignalKind distinguishes raw activity from navigation.
type SignalKind int

const (
	SignalActivity SignalKind = iota
	SignalTabSwitch
)

func (k SignalKind) String() string {
	if k == SignalTabSwitch {
		return "tab_switch"
	}
	return "activity"
}

// Signal is one raw observation from a Source.
type Signal struct {
	Kind SignalKind
	Time time.Time
	// Tab is the destination of a tab switch.
	Tab string
}

// Handler receives signals from a Source.
type Handler func(Signal)

// Source produces signals between Attach and Detach.
type Source interface {
	Attach(h Handler) error
	Detach() error
}

// Recorder is the part of a session the tracker writes to.
type Recorder interface {
	RecordEvent(kind session.EventKind, t time.Time, meta *session.Metadata) error
	LastEventTime() time.Time
	Locked() bool
}

// Stats counts what the tracker did with the signals it received.
type Stats struct {
	Recorded int
	Skipped  int
	Failed   int
}

// Tracker applies the idle policy and records events on a Recorder.
type Tracker struct {
	mu       sync.Mutex
	rec      Recorder
	idle     time.Duration
	src      Source
	stats    Stats
	onRecord func(session.Event)
	logger   *slog.Logger
	metrics  *metrics.Set
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIdleInterval overrides DefaultIdleInterval.
func WithIdleInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.idle = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics reports tracker activity on m.
func WithMetrics(m *metrics.Set) Option {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

// OnRecord registers a callback invoked after each recorded event,
// typically to persist it.
func OnRecord(fn func(session.Event)) Option {
	return func(t *Tracker) { t.onRecord = fn }
}

// New creates a tracker writing to rec.
func New(rec Recorder, opts ...Option) *Tracker {
	t := &Tracker{
		rec:     rec,
		idle:    DefaultIdleInterval,
		logger:  slog.Default(),
		metrics: metrics.NewSet(metrics.NewRegistry("")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start attaches the tracker to src.
func (t *Tracker) Start(src Source) error {
	t.mu.Lock()
	if t.src != nil {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.src = src
	t.mu.Unlock()

	if err := src.Attach(t.Handle); err != nil {
		t.mu.Lock()
		t.src = nil
		t.mu.Unlock()
		return err
	}
	t.metrics.ActiveTrackers.Inc()
	t.logger.Debug("tracker attached")
	return nil
}

// Stop detaches the tracker from its source.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	src := t.src
	t.src = nil
	t.mu.Unlock()

	if src == nil {
		return ErrNotRunning
	}
	t.metrics.ActiveTrackers.Dec()
	t.logger.Debug("tracker detached")
	return src.Detach()
}

// Running reports whether the tracker is attached.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.src != nil
}

// Stats returns a copy of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Handle applies the idle policy to one signal. Sources call it; it is
// exported so callers can feed signals without a Source.
func (t *Tracker) Handle(sig Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ev session.Event
	switch sig.Kind {
	case SignalTabSwitch:
		ev = session.Event{Kind: session.EventSwitchTab, Time: sig.Time, Meta: &session.Metadata{Tab: sig.Tab}}
	default:
		if sig.Time.Sub(t.rec.LastEventTime()) < t.idle {
			t.stats.Skipped++
			t.metrics.EventsSkipped.Inc()
			return
		}
		ev = session.Event{Kind: session.EventActivity, Time: sig.Time}
	}

	if t.rec.Locked() {
		t.logger.Debug("signal after submission", "kind", sig.Kind.String())
	}
	if err := t.rec.RecordEvent(ev.Kind, ev.Time, ev.Meta); err != nil {
		t.stats.Failed++
		t.metrics.EventsFailed.Inc()
		t.logger.Warn("record event failed", "kind", string(ev.Kind), "error", err)
		return
	}
	t.stats.Recorded++
	t.metrics.EventsRecorded.Inc()
	if t.onRecord != nil {
		t.onRecord(ev)
	}
}
