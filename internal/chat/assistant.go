package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aiaudit/internal/metrics"
	"aiaudit/internal/session"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrSessionLocked = errors.New("session is submitted")
)

// ExchangeHook is called after each turn is recorded, with the turn and the
// log event that mirrors it. Returning an error aborts the Ask.
type ExchangeHook func(ctx context.Context, c session.ChatExchange, e session.Event) error

// Assistant asks the provider on behalf of a session and records both turns.
type Assistant struct {
	mu       sync.Mutex
	sess     *session.Session
	tr       *session.Transcript
	provider Provider
	now      func() time.Time
	hook     ExchangeHook
	logger   *slog.Logger
	metrics  *metrics.Set
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock overrides the time source used to stamp turns.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithMetrics reports turns, failures and reply latency on m.
func WithMetrics(m *metrics.Set) Option {
	return func(a *Assistant) {
		if m != nil {
			a.metrics = m
		}
	}
}

// OnExchange registers a hook, typically used to persist turns.
func OnExchange(h ExchangeHook) Option {
	return func(a *Assistant) { a.hook = h }
}

// NewAssistant binds a provider to a session and its transcript.
func NewAssistant(sess *session.Session, tr *session.Transcript, p Provider, opts ...Option) *Assistant {
	a := &Assistant{
		sess:     sess,
		tr:       tr,
		provider: p,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		metrics:  metrics.NewSet(metrics.NewRegistry("")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask records the question as a STUDENT turn, waits for the provider and
// records the answer as a MODEL turn stamped with the completion time.
// When the provider fails the student turn stays recorded and no MODEL
// turn is written.
func (a *Assistant) Ask(ctx context.Context, question string) (session.ChatExchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return session.ChatExchange{}, ErrEmptyQuestion
	}
	if a.sess.Locked() {
		return session.ChatExchange{}, ErrSessionLocked
	}

	// One question in flight per session keeps turns paired.
	a.mu.Lock()
	defer a.mu.Unlock()

	history := HistoryFromExchanges(a.tr.Exchanges())
	asked, err := a.record(ctx, session.RoleStudent, question)
	if err != nil {
		return session.ChatExchange{}, err
	}
	a.logger.Debug("question recorded",
		"session_id", a.sess.ID(),
		"intent", string(asked.Intent),
		"length", len([]rune(question)),
	)

	reply, err := a.provider.Reply(ctx, history, question)
	if err != nil {
		a.metrics.ProviderErrors.Inc()
		a.logger.Warn("provider failed", "provider", a.provider.Name(), "error", err)
		return session.ChatExchange{}, fmt.Errorf("ask %s: %w", a.provider.Name(), err)
	}

	answered, err := a.record(ctx, session.RoleModel, reply)
	if err != nil {
		return session.ChatExchange{}, err
	}
	latency := answered.Time.Sub(asked.Time)
	a.metrics.ReplyLatency.ObserveDuration(latency)
	a.logger.Info("reply recorded",
		"session_id", a.sess.ID(),
		"provider", a.provider.Name(),
		"latency_ms", latency.Milliseconds(),
	)
	return answered, nil
}

func (a *Assistant) record(ctx context.Context, role session.Role, text string) (session.ChatExchange, error) {
	c, err := a.sess.RecordExchange(a.tr, role, text, a.now())
	if err != nil {
		return c, fmt.Errorf("record %s turn: %w", role, err)
	}
	a.metrics.Exchanges.Inc()
	if a.hook != nil {
		if err := a.hook(ctx, c, session.ExchangeEvent(c)); err != nil {
			return c, fmt.Errorf("persist %s turn: %w", role, err)
		}
	}
	return c, nil
}
